package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-engine/internal/api/http"
	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/persistence"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	calendars, err := calendar.Load(cfg.SLA.CalendarFile, logger)
	if err != nil {
		logger.Fatal("failed to load calendars", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	events.NewRedisPublisher(redis.Client, logger, metrics).Register(dispatcher)

	policyRepo, ticketRepo, clockRepo, npaRepo, alertRepo := buildRepositories(pg)

	locks := service.NewTicketLocks()
	calculator := service.NewDeadlineCalculator(calendars)

	clockService := service.NewClockService(service.ClockDependencies{
		ClockRepo:  clockRepo,
		Calculator: calculator,
		Locks:      locks,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	breachService := service.NewBreachService(service.BreachDependencies{
		ClockRepo:  clockRepo,
		AlertRepo:  alertRepo,
		Calculator: calculator,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Thresholds: service.BreachThresholds{
			WarningPercent:  cfg.SLA.WarningPercent,
			CriticalPercent: cfg.SLA.CriticalPercent,
		},
	})

	mutationPool := worker.NewMutationPool(breachService, cfg.Worker.Shards, cfg.Worker.QueueDepth, metrics, logger)
	mutationPool.Start(ctx)
	defer mutationPool.Stop()

	policyService := service.NewPolicyService(policyRepo, logger)
	npaService := service.NewNPAService(service.NPADependencies{
		NPARepo:    npaRepo,
		Clocks:     clockService,
		Locks:      locks,
		Scheduler:  mutationPool,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	cleanupWorker := worker.NewCleanupWorker(worker.NormalizingCleaner{}, npaService, cfg.Worker.CleanupJobs, logger)
	cleanupWorker.Start(ctx)
	defer cleanupWorker.Stop()
	npaService.SetCleanup(cleanupWorker)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Policies:   policyService,
		Clocks:     clockService,
		NPA:        npaService,
		Scheduler:  mutationPool,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	complianceService := service.NewComplianceService(clockRepo, cfg.SLA.AggregationMaxDays, logger)
	alertService := service.NewAlertService(alertRepo, dispatcher, logger)

	sweep := worker.NewSweepWorker(clockRepo, breachService, redis.Client, cfg.SLA.SweepInterval(), cfg.SLA.SweepPageSize, metrics, logger)
	go func() {
		if err := sweep.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sweep worker exited", zap.Error(err))
		}
	}()

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		NPA:            handlers.NewNPAHandler(npaService),
		Compliance:     handlers.NewComplianceHandler(complianceService),
		Alerts:         handlers.NewAlertsHandler(alertService),
		Policies:       handlers.NewPoliciesHandler(policyService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
}

// buildRepositories picks Postgres-backed repositories when a pool exists
// and in-memory fallbacks otherwise.
func buildRepositories(pg *persistence.Postgres) (repository.PolicyRepository, repository.TicketRepository, repository.ClockRepository, repository.NPARepository, repository.AlertRepository) {
	pool := pg.PoolHandle()
	if pool != nil {
		return repository.NewPolicyRepository(pool),
			repository.NewTicketRepository(pool),
			repository.NewClockRepository(pool),
			repository.NewNPARepository(pool),
			repository.NewAlertRepository(pool)
	}
	tickets := repository.NewMemoryTicketRepository()
	return repository.NewMemoryPolicyRepository(),
		tickets,
		repository.NewMemoryClockRepository(tickets),
		repository.NewMemoryNPARepository(),
		repository.NewMemoryAlertRepository()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
