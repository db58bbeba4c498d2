package app

import (
	"github.com/jmoiron/sqlx"

	"github.com/courtdata/nba-sync/external/nbastats"
	"github.com/courtdata/nba-sync/internal/config"
	"github.com/courtdata/nba-sync/internal/infrastructure/repository/postgres"
	"github.com/courtdata/nba-sync/internal/platform/logging"
	"github.com/courtdata/nba-sync/internal/platform/resilience"
	"github.com/courtdata/nba-sync/internal/usecase"
)

// App wires the sync service: two database pools, the stats client,
// and the usecase layer on top of them.
type App struct {
	Config config.Config
	Logger *logging.Logger

	RefDB   *sqlx.DB
	StatsDB *sqlx.DB

	Manager   *usecase.SyncManager
	Reference *usecase.ReferenceSyncService
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	refDB, err := openDB(cfg.RefDBURL)
	if err != nil {
		return nil, err
	}
	statsDB, err := openDB(cfg.StatsDBURL)
	if err != nil {
		_ = refDB.Close()
		return nil, err
	}

	client := nbastats.NewClient(nbastats.ClientConfig{
		BaseURL:       cfg.NBAAPIBaseURL,
		UserAgent:     cfg.NBAAPIUserAgent,
		Timeout:       cfg.NBAAPITimeout,
		MaxRetries:    cfg.NBAAPIMaxRetries,
		RatePerSecond: cfg.NBAAPIRatePerSecond,
		RateBurst:     cfg.NBAAPIRateBurst,
		CacheTTL:      cfg.NBAAPICacheTTL,
		Logger:        logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.NBAAPICircuitEnabled,
			FailureThreshold: cfg.NBAAPICircuitFailureCount,
			OpenTimeout:      cfg.NBAAPICircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.NBAAPICircuitHalfOpenReq,
		},
	})

	gameRepo := postgres.NewGameRepository(refDB)
	teamRepo := postgres.NewTeamRepository(refDB)
	playerRepo := postgres.NewPlayerRepository(refDB)

	ledger := postgres.NewSyncLogRepository(statsDB)
	boxRepo := postgres.NewBoxscoreRepository(statsDB)
	pbpRepo := postgres.NewPlayByPlayRepository(statsDB)
	progressRepo := postgres.NewProgressRepository(statsDB)

	managerCfg := usecase.DefaultManagerConfig()
	pacing := managerCfg.BatchPacing

	boxSyncer := usecase.NewBoxscoreSyncer(client, boxRepo, ledger, pacing, nil, nil, logger)
	pbpSyncer := usecase.NewPlayByPlaySyncer(client, pbpRepo, ledger, pacing, nil, nil, logger)

	manager := usecase.NewSyncManager(
		gameRepo,
		boxRepo,
		pbpRepo,
		ledger,
		boxSyncer,
		pbpSyncer,
		managerCfg,
		nil,
		nil,
		logger,
	)

	reference := usecase.NewReferenceSyncService(
		client,
		teamRepo,
		playerRepo,
		gameRepo,
		ledger,
		progressRepo,
		nil,
		logger,
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		RefDB:     refDB,
		StatsDB:   statsDB,
		Manager:   manager,
		Reference: reference,
	}, nil
}

func (a *App) Close() error {
	var firstErr error
	if a.StatsDB != nil {
		if err := a.StatsDB.Close(); err != nil {
			firstErr = err
		}
	}
	if a.RefDB != nil {
		if err := a.RefDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
