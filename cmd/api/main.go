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

	"github.com/spec-kit/petcare-queue/internal/analytics"
	httptransport "github.com/spec-kit/petcare-queue/internal/api/http"
	"github.com/spec-kit/petcare-queue/internal/api/http/handlers"
	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/config"
	"github.com/spec-kit/petcare-queue/internal/events"
	"github.com/spec-kit/petcare-queue/internal/feed"
	"github.com/spec-kit/petcare-queue/internal/notify"
	"github.com/spec-kit/petcare-queue/internal/observability"
	"github.com/spec-kit/petcare-queue/internal/persistence"
	"github.com/spec-kit/petcare-queue/internal/queue"
	"github.com/spec-kit/petcare-queue/internal/repository"
	"github.com/spec-kit/petcare-queue/internal/service"
	"github.com/spec-kit/petcare-queue/internal/telemetry"
	"github.com/spec-kit/petcare-queue/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry, cfg.App, logger)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	deps := []handlers.Dependency{{Name: "postgres", Pinger: pg}}
	var dispatcher events.Dispatcher
	switch cfg.Feed.Mode {
	case "redis":
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
		redisDispatcher := events.NewRedisDispatcher(ctx, rdb.Client, cfg.Feed.Channel, logger)
		defer redisDispatcher.Close()
		dispatcher = redisDispatcher
		deps = append(deps, handlers.Dependency{Name: "redis", Pinger: rdb})
	default:
		dispatcher = events.NewInMemoryDispatcher(logger)
	}

	metrics := observability.NewMetrics()

	pool := pg.Pool
	ticketRepo := repository.NewTicketRepository(pool)
	activityRepo := repository.NewActivityRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:      ticketRepo,
		ActivityRepo:    activityRepo,
		Dispatcher:      dispatcher,
		Recorder:        metrics,
		Logger:          logger,
		BulkConcurrency: cfg.Queue.BulkConcurrency,
	})
	calendar := analytics.Calendar{OpenHour: cfg.Queue.OpenHour, CloseHour: cfg.Queue.CloseHour}
	analyticsService := service.NewAnalyticsService(ticketRepo, calendar, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(staffRepo, tokens, logger)
	notificationService := service.NewNotificationService(
		dispatcher,
		notify.NewSender(cfg.Notification, logger),
		metrics,
		cfg.App.PublicURL,
		logger,
	)

	workers := worker.NewGroup(logger)
	worker.StartNotificationWorker(notificationService)
	hub := feed.NewHub(ticketRepo, logger)
	workers.StartFeedWorker(ctx, hub, dispatcher)
	tracker := queue.NewTracker(hub, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, deps...),
		Tickets:        handlers.NewTicketsHandler(ctx, ticketService, tracker, cfg.App.PublicURL),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	// ends position streams and the feed worker before the server drains
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	workers.Wait(notificationService)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
