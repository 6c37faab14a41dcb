// Package app assembles the auth service from configuration for the binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"atelier.dev/internal/audit"
	"atelier.dev/internal/auth"
	"atelier.dev/internal/config"
	"atelier.dev/internal/obs"
)

// Deps is everything a binary needs to serve or maintain auth state.
type Deps struct {
	DB      *sql.DB // nil for the memory driver
	Store   auth.Store
	Service *auth.Service
}

// Close releases the database pool.
func (d *Deps) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// OpenDB opens and pings the configured PostgreSQL pool.
func OpenDB(ctx context.Context, cfg config.DatabaseCfg) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetimeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Build wires the store, token issuer and service described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	deps := &Deps{}
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory store; state is lost on restart")
		deps.Store = auth.NewMemoryStore()
	default:
		db, err := OpenDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.DB = db
		deps.Store = auth.NewPGStore(db)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.Issuer,
		deps.Store.UserTypes(ctx))
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	svc, err := auth.NewService(deps.Store, tokens,
		auth.WithLogger(logger),
		auth.WithMaxLoginAttempts(cfg.Auth.MaxLoginAttempts),
		auth.WithMetrics(obs.AuthMetrics{}),
		auth.WithAudit(audit.LogEvent),
	)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Service = svc
	return deps, nil
}

// LogConfig maps the config section onto the logger settings.
func LogConfig(cfg *config.Config) obs.LogConfig {
	return obs.LogConfig{
		Level:       cfg.Log.Level,
		Development: !cfg.Production(),
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
	}
}
