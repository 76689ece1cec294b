package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/research-portal/internal/config"
	"github.com/spec-kit/research-portal/internal/observability"
	"github.com/spec-kit/research-portal/internal/persistence"
	"github.com/spec-kit/research-portal/internal/repository"
	"github.com/spec-kit/research-portal/internal/service"
)

// createadmin provisions the administrator account in Postgres.
// Flags override ADMIN_NAME, ADMIN_EMAIL and ADMIN_PASSWORD.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	name := flag.String("name", cfg.Admin.Name, "administrator display name")
	email := flag.String("email", cfg.Admin.Email, "administrator email")
	password := flag.String("password", cfg.Admin.Password, "administrator password")
	flag.Parse()

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		logger.Fatal("POSTGRES_DSN is required to provision the administrator")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Identities: repository.NewIdentityRepository(pg.PoolHandle()),
		Logger:     logger,
	})

	identity, created, err := authService.SeedAdmin(ctx, *name, *email, *password)
	if err != nil {
		logger.Fatal("failed to create admin", zap.Error(err))
	}
	if !created {
		logger.Info("admin already exists", zap.String("id", identity.ID), zap.String("email", identity.Email))
		return
	}
	logger.Info("admin created", zap.String("id", identity.ID), zap.String("email", identity.Email))
}
