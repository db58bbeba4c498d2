package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/courtdata/nba-sync/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the sync service.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string

	RefDBURL   string
	StatsDBURL string

	NBAAPIBaseURL             string
	NBAAPIUserAgent           string
	NBAAPITimeout             time.Duration
	NBAAPIMaxRetries          int
	NBAAPIRatePerSecond       float64
	NBAAPIRateBurst           int
	NBAAPICacheTTL            time.Duration
	NBAAPICircuitEnabled      bool
	NBAAPICircuitFailureCount int
	NBAAPICircuitOpenTimeout  time.Duration
	NBAAPICircuitHalfOpenReq  int

	SyncMaxWorkers           int
	SyncBatchSize            int
	SyncBatchInterval        time.Duration
	SyncWithRetry            bool
	SyncMaxRetries           int
	SyncForce                bool
	SyncDaemonSchedule       string
	SyncExitNonzeroOnFailure bool

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string

	PprofEnabled bool
	PprofAddr    string

	LogLevel logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	refDBURL := strings.TrimSpace(getEnv("REF_DB_URL", ""))
	if refDBURL == "" {
		return Config{}, fmt.Errorf("REF_DB_URL is required")
	}
	statsDBURL := strings.TrimSpace(getEnv("STATS_DB_URL", ""))
	if statsDBURL == "" {
		return Config{}, fmt.Errorf("STATS_DB_URL is required")
	}

	apiTimeout, err := getEnvAsDuration("NBA_API_TIMEOUT", 20*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_TIMEOUT: %w", err)
	}
	apiMaxRetries, err := getEnvAsInt("NBA_API_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_MAX_RETRIES: %w", err)
	}
	apiRate, err := getEnvAsFloat("NBA_API_RATE_PER_SECOND", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_RATE_PER_SECOND: %w", err)
	}
	apiBurst, err := getEnvAsInt("NBA_API_RATE_BURST", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_RATE_BURST: %w", err)
	}
	apiCacheTTL, err := getEnvAsDuration("NBA_API_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_CACHE_TTL: %w", err)
	}
	apiCircuitEnabled, err := getEnvAsBool("NBA_API_CIRCUIT_ENABLED", true)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_CIRCUIT_ENABLED: %w", err)
	}
	apiCircuitFailures, err := getEnvAsInt("NBA_API_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	apiCircuitOpen, err := getEnvAsDuration("NBA_API_CIRCUIT_OPEN_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	apiCircuitHalfOpen, err := getEnvAsInt("NBA_API_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse NBA_API_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}

	syncWorkers, err := getEnvAsInt("SYNC_MAX_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_MAX_WORKERS: %w", err)
	}
	if syncWorkers < 1 || syncWorkers > 8 {
		return Config{}, fmt.Errorf("SYNC_MAX_WORKERS must be between 1 and 8, got %d", syncWorkers)
	}
	syncBatchSize, err := getEnvAsInt("SYNC_BATCH_SIZE", 20)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_BATCH_SIZE: %w", err)
	}
	if syncBatchSize < 1 {
		return Config{}, fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", syncBatchSize)
	}
	syncInterval, err := getEnvAsDuration("SYNC_BATCH_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_BATCH_INTERVAL: %w", err)
	}
	syncWithRetry, err := getEnvAsBool("SYNC_WITH_RETRY", true)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_WITH_RETRY: %w", err)
	}
	syncMaxRetries, err := getEnvAsInt("SYNC_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_MAX_RETRIES: %w", err)
	}
	syncForce, err := getEnvAsBool("SYNC_FORCE", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_FORCE: %w", err)
	}
	syncExitNonzero, err := getEnvAsBool("SYNC_EXIT_NONZERO_ON_FAILURE", true)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_EXIT_NONZERO_ON_FAILURE: %w", err)
	}

	uptraceEnabled, err := getEnvAsBool("UPTRACE_ENABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := getEnvAsBool("PYROSCOPE_ENABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeAddr := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeAddr == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}

	pprofEnabled, err := getEnvAsBool("PPROF_ENABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}

	logLevel, err := logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_LOG_LEVEL: %w", err)
	}

	return Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("SERVICE_NAME", "nba-sync"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),

		RefDBURL:   refDBURL,
		StatsDBURL: statsDBURL,

		NBAAPIBaseURL:             strings.TrimSpace(getEnv("NBA_API_BASE_URL", "")),
		NBAAPIUserAgent:           strings.TrimSpace(getEnv("NBA_API_USER_AGENT", "")),
		NBAAPITimeout:             apiTimeout,
		NBAAPIMaxRetries:          apiMaxRetries,
		NBAAPIRatePerSecond:       apiRate,
		NBAAPIRateBurst:           apiBurst,
		NBAAPICacheTTL:            apiCacheTTL,
		NBAAPICircuitEnabled:      apiCircuitEnabled,
		NBAAPICircuitFailureCount: apiCircuitFailures,
		NBAAPICircuitOpenTimeout:  apiCircuitOpen,
		NBAAPICircuitHalfOpenReq:  apiCircuitHalfOpen,

		SyncMaxWorkers:           syncWorkers,
		SyncBatchSize:            syncBatchSize,
		SyncBatchInterval:        syncInterval,
		SyncWithRetry:            syncWithRetry,
		SyncMaxRetries:           syncMaxRetries,
		SyncForce:                syncForce,
		SyncDaemonSchedule:       getEnv("SYNC_DAEMON_SCHEDULE", "0 6 * * *"),
		SyncExitNonzeroOnFailure: syncExitNonzero,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PyroscopeEnabled:       pyroscopeEnabled,
		PyroscopeServerAddress: pyroscopeAddr,
		PyroscopeAppName:       getEnv("PYROSCOPE_APP_NAME", "nba-sync"),
		PyroscopeAuthToken:     getEnv("PYROSCOPE_AUTH_TOKEN", ""),

		PprofEnabled: pprofEnabled,
		PprofAddr:    getEnv("PPROF_ADDR", "localhost:6060"),

		LogLevel: logLevel,
	}, nil
}

func parseAppEnv(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case EnvDev, EnvStage, EnvProd:
		return v, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	return strconv.ParseBool(value)
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if out <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", out)
	}

	return out, nil
}
