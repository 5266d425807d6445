package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/workflow-service/internal/api/http"
	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/persistence"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/service"
	"github.com/spec-kit/workflow-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), afero.NewOsFs(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	dependencies := map[string]handlers.Pinger{"redis": redis}
	var repos repository.Set
	if pool := pg.PoolHandle(); pool != nil {
		repos = repository.NewPostgresSet(pool)
		dependencies["postgres"] = pg
	} else {
		logger.Warn("running with in-memory storage; data is lost on restart")
		repos = repository.NewMemoryStore().Set()
	}

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	transitionService := service.NewTransitionService(service.TransitionDependencies{
		StageRepo:      repos.Stages,
		TransitionRepo: repos.Transitions,
		Transactor:     repos.Transactor,
		Logger:         logger,
	})
	stageService := service.NewStageService(service.StageDependencies{
		StageRepo:   repos.Stages,
		TicketRepo:  repos.Tickets,
		Transitions: transitionService,
		Transactor:  repos.Transactor,
		Logger:      logger,
		Config:      cfg.Workflow,
	})
	moverService := service.NewMoverService(service.MoverDependencies{
		StageRepo:   repos.Stages,
		TicketRepo:  repos.Tickets,
		CommentRepo: repos.Comments,
		Transitions: transitionService,
		Transactor:  repos.Transactor,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	reorderService := service.NewReorderService(service.ReorderDependencies{
		StageRepo:  repos.Stages,
		Transactor: repos.Transactor,
		Logger:     logger,
	})

	publisher := events.NewRedisPublisher(redis, cfg.Events.RedisChannel)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, logger))

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Stages:         handlers.NewStagesHandler(stageService, transitionService, reorderService),
		Tickets:        handlers.NewTicketsHandler(moverService, stageService, auth.NewClaimsPermissionChecker()),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	requests, errs, moves := metrics.Snapshot()
	logger.Info("stopped",
		zap.Any("requests", requests),
		zap.Any("errors", errs),
		zap.Any("moves", moves))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
