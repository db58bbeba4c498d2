package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REF_DB_URL", "postgres://localhost:5432/nba_ref?sslmode=disable")
	t.Setenv("STATS_DB_URL", "postgres://localhost:5432/nba_stats?sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.AppEnv != EnvDev {
		t.Fatalf("expected dev env, got=%s", cfg.AppEnv)
	}
	if cfg.ServiceName != "nba-sync" {
		t.Fatalf("unexpected service name %s", cfg.ServiceName)
	}
	if cfg.SyncMaxWorkers != 4 || cfg.SyncBatchSize != 20 || cfg.SyncBatchInterval != 2*time.Second {
		t.Fatalf("unexpected sync defaults: %+v", cfg)
	}
	if !cfg.SyncWithRetry || cfg.SyncMaxRetries != 3 {
		t.Fatalf("unexpected retry defaults: %+v", cfg)
	}
	if cfg.NBAAPITimeout != 20*time.Second || cfg.NBAAPIMaxRetries != 2 {
		t.Fatalf("unexpected api defaults: %+v", cfg)
	}
	if !cfg.NBAAPICircuitEnabled || cfg.NBAAPICircuitFailureCount != 5 {
		t.Fatalf("unexpected circuit defaults: %+v", cfg)
	}
	if cfg.SyncDaemonSchedule != "0 6 * * *" {
		t.Fatalf("unexpected daemon schedule %q", cfg.SyncDaemonSchedule)
	}
	if !cfg.SyncExitNonzeroOnFailure {
		t.Fatal("expected nonzero-exit default on")
	}
}

func TestLoad_RequiresDatabaseURLs(t *testing.T) {
	t.Setenv("REF_DB_URL", "")
	t.Setenv("STATS_DB_URL", "postgres://localhost:5432/nba_stats")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REF_DB_URL") {
		t.Fatalf("expected REF_DB_URL error, got=%v", err)
	}

	t.Setenv("REF_DB_URL", "postgres://localhost:5432/nba_ref")
	t.Setenv("STATS_DB_URL", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "STATS_DB_URL") {
		t.Fatalf("expected STATS_DB_URL error, got=%v", err)
	}
}

func TestLoad_WorkerBounds(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("SYNC_MAX_WORKERS", "9")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SYNC_MAX_WORKERS") {
		t.Fatalf("expected worker bound error, got=%v", err)
	}

	t.Setenv("SYNC_MAX_WORKERS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero workers")
	}

	t.Setenv("SYNC_MAX_WORKERS", "8")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.SyncMaxWorkers != 8 {
		t.Fatalf("expected 8 workers, got=%d", cfg.SyncMaxWorkers)
	}
}

func TestLoad_InvalidAppEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "APP_ENV") {
		t.Fatalf("expected APP_ENV error, got=%v", err)
	}
}

func TestLoad_UptraceRequiresDSN(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "UPTRACE_DSN") {
		t.Fatalf("expected UPTRACE_DSN error, got=%v", err)
	}

	t.Setenv("UPTRACE_DSN", "https://token@uptrace.example/1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.UptraceEnabled || cfg.UptraceDSN == "" {
		t.Fatalf("unexpected uptrace config: %+v", cfg)
	}
}

func TestLoad_NegativeDurationRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_BATCH_INTERVAL", "-2s")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SYNC_BATCH_INTERVAL") {
		t.Fatalf("expected duration error, got=%v", err)
	}
}
