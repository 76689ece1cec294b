package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/research-portal/internal/api/http"
	"github.com/spec-kit/research-portal/internal/api/http/handlers"
	"github.com/spec-kit/research-portal/internal/auth"
	"github.com/spec-kit/research-portal/internal/config"
	"github.com/spec-kit/research-portal/internal/events"
	"github.com/spec-kit/research-portal/internal/observability"
	"github.com/spec-kit/research-portal/internal/persistence"
	"github.com/spec-kit/research-portal/internal/repository"
	"github.com/spec-kit/research-portal/internal/revocation"
	"github.com/spec-kit/research-portal/internal/service"
	"github.com/spec-kit/research-portal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	readiness := map[string]handlers.Pinger{}
	var identities repository.IdentityRepository
	if pg.Enabled() {
		identities = repository.NewIdentityRepository(pg.PoolHandle())
		readiness["postgres"] = pg
	} else {
		identities = repository.NewMemoryIdentityRepository()
	}

	var (
		ledger   revocation.Ledger
		sweepers []worker.Sweeper
	)
	switch cfg.Revocation.Backend {
	case config.RevocationRedis:
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		readiness["redis"] = redis
		ledger = revocation.NewRedisLedger(redis.Client, cfg.Revocation.KeyPrefix)
	case config.RevocationPostgres:
		pgLedger := revocation.NewPostgresLedger(pg.PoolHandle())
		sweepers = append(sweepers, pgLedger)
		ledger = pgLedger
	default:
		logger.Warn("using in-memory revocation ledger; revocations are lost on restart")
		memLedger := revocation.NewMemoryLedger()
		defer memLedger.Close()
		ledger = memLedger
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		Issuer:        cfg.App.Name,
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL(),
		RefreshTTL:    cfg.Auth.RefreshTTL(),
	}, ledger)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, service.NewLogMailer(logger), logger, cfg.Notification)
	worker.StartNotificationWorker(notifications)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Identities: identities,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})

	if !pg.Enabled() {
		seedInMemoryAdmin(ctx, authService, cfg.Admin, logger)
	}

	loginLimiter := auth.NewSlidingWindowLimiter("login", cfg.RateLimit.LoginLimit, time.Duration(cfg.RateLimit.LoginWindowMinutes)*time.Minute)
	refreshLimiter := auth.NewSlidingWindowLimiter("refresh", cfg.RateLimit.RefreshLimit, time.Duration(cfg.RateLimit.RefreshWindowMinutes)*time.Minute)
	adminLimiter := auth.NewSlidingWindowLimiter("admin", cfg.RateLimit.AdminLimit, time.Duration(cfg.RateLimit.AdminWindowMinutes)*time.Minute)
	sweepers = append(sweepers, loginLimiter, refreshLimiter, adminLimiter)
	go worker.RunSweepers(ctx, cfg.RateLimit.SweepInterval(), logger, sweepers...)

	cookies := auth.NewCookieCodec(auth.CookieConfig{
		Name:       cfg.Auth.RefreshCookieName,
		Domain:     cfg.App.CookieDomain(),
		Production: cfg.App.IsProduction(),
		MaxAge:     tokens.RefreshTTL(),
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Auth:           handlers.NewAuthHandler(authService, cookies),
		Session:        handlers.NewSessionHandler(),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, identities),
		LoginLimiter:   loginLimiter,
		RefreshLimiter: refreshLimiter,
		AdminLimiter:   adminLimiter,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// seedInMemoryAdmin makes the in-memory credential store usable; without it
// no one could ever log in.
func seedInMemoryAdmin(ctx context.Context, authService *service.AuthService, admin config.AdminConfig, logger *zap.Logger) {
	if admin.Email == "" || admin.Password == "" {
		logger.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set; in-memory credential store has no administrator")
		return
	}
	identity, _, err := authService.SeedAdmin(ctx, admin.Name, admin.Email, admin.Password)
	if err != nil {
		logger.Fatal("failed to seed admin", zap.Error(err))
	}
	logger.Info("seeded in-memory admin", zap.String("id", identity.ID), zap.String("email", identity.Email))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
