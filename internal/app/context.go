package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"questforge/internal/config"
	"questforge/internal/db"
	"questforge/internal/engine"
	"questforge/internal/metrics"
	"questforge/internal/migrate"
)

type Options struct {
	Workspace string
	// ConfigPath overrides <workspace>/questforge.yml when set.
	ConfigPath string
	Log        *zap.Logger
	Metrics    *metrics.Metrics
}

// App bundles an open workspace database with the engine built on it.
type App struct {
	DB     *sql.DB
	Engine engine.Engine
	Config *config.Config
}

// Open prepares the workspace, migrates the database to the latest schema and loads the
// config, falling back to defaults when the workspace has no questforge.yml.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg)
	if opts.Log != nil {
		e.Log = opts.Log
	}
	e.Metrics = opts.Metrics
	return &App{DB: conn, Engine: e, Config: cfg}, nil
}

func loadConfig(opts Options) (*config.Config, error) {
	if opts.ConfigPath != "" {
		cfg, err := config.FromFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.ConfigPath, err)
		}
		return cfg, nil
	}
	return config.LoadOptional(opts.Workspace)
}

func (a *App) Close() error {
	return a.DB.Close()
}

// NewLogger builds the process logger: JSON production output, debug level when verbose.
func NewLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
