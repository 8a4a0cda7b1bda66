package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/batchflow-backend/internal/data/db"
	"github.com/yungbote/batchflow-backend/internal/data/repos"
	"github.com/yungbote/batchflow-backend/internal/observability"
	"github.com/yungbote/batchflow-backend/internal/platform/gcp"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
	"github.com/yungbote/batchflow-backend/internal/temporalx"
)

type App struct {
	Log     *logger.Logger
	Cfg     Config
	DB      *db.Service
	Metrics *observability.Metrics

	Repos      repos.Set
	Aggregates Aggregates
	Issuance   Issuance

	redis       *goredis.Client
	reportStore *gcp.ReportStore
	temporal    temporalsdkclient.Client
	temporalCfg temporalx.Config

	otelShutdown func(context.Context) error
}

// New loads configuration and wires every component. Long-running loops are
// started by Serve and Work, not here.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := cfg.newLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	a.otelShutdown = observability.InitOTel(ctx, a.Log, a.Cfg.otelConfig())
	a.Metrics = observability.Init(a.Log)

	svc, err := openDatabase(a.Log, a.Cfg)
	if err != nil {
		return err
	}
	a.DB = svc
	if a.Cfg.AutoMigrate {
		if err := svc.AutoMigrateAll(); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
	}

	a.Repos = repos.NewSet(svc.DB(), a.Log)

	clients, err := wireClients(ctx, a.Log, a.Cfg, a.Metrics)
	if err != nil {
		return err
	}
	a.redis = clients.Redis
	a.reportStore = clients.ReportStore

	a.temporalCfg, err = temporalx.LoadConfig()
	if err != nil {
		return fmt.Errorf("temporal config: %w", err)
	}
	if a.temporalCfg.Enabled() {
		a.temporal, err = temporalx.NewClient(ctx, a.Log, a.temporalCfg)
		if err != nil {
			return fmt.Errorf("temporal client: %w", err)
		}
	}

	a.Aggregates, a.Issuance, err = wireDomain(a.Log, a.Cfg, svc.DB(), a.Repos, a.Metrics, clients, a.temporal, a.temporalCfg)
	return err
}

func openDatabase(log *logger.Logger, cfg Config) (*db.Service, error) {
	switch cfg.DBDriver {
	case "sqlite":
		svc, err := db.NewSQLiteService(log, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return svc, nil
	default:
		svc, err := db.NewPostgresService(log, cfg.postgresConfig())
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return svc, nil
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.reportStore != nil {
		_ = a.reportStore.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// Migrate opens the configured database and applies the schema without wiring
// any other component.
func Migrate() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log, err := cfg.newLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	svc, err := openDatabase(log, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.AutoMigrateAll()
}
