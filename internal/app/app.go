// Package app wires repositories, services and background workers from configuration.
// Both the API server and the operator CLI build on it.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/amqp"
	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/config"
	"github.com/craigrbailey/BillPilot-sub000/internal/notify"
	"github.com/craigrbailey/BillPilot-sub000/internal/repository/postgres"
	"github.com/craigrbailey/BillPilot-sub000/internal/service"
	"github.com/craigrbailey/BillPilot-sub000/internal/websocket"
)

// App holds the long-lived components of one process
type App struct {
	Pool       *pgxpool.Pool
	Cache      *cache.Cache
	Hub        *websocket.Hub
	Publisher  websocket.EventPublisher
	Dispatcher *notify.Dispatcher

	Auth        *service.AuthService
	Categories  *service.CategoryService
	Templates   *service.TemplateService
	Obligations *service.ObligationService
	Payments    *service.PaymentService
	Settings    *service.NotificationSettingsService
	Jobs        *service.JobRunner
	Scheduler   *service.NotificationScheduler
	Horizon     *service.HorizonWorker

	relay *amqp.Publisher
}

// New connects to the database and the optional event relay and builds every service
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info().Msg("Connected to database")

	a := &App{
		Pool:  pool,
		Cache: cache.New(cfg.Cache.Size, cfg.Cache.TTL),
		Hub:   websocket.NewHub(logger, websocket.HubConfig{MaxClientsPerOwner: cfg.WebSocket.MaxClientsPerOwner}),
	}

	publishers := websocket.MultiPublisher{a.Hub}
	if cfg.AMQP.URL != "" {
		relay, err := amqp.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect event relay: %w", err)
		}
		a.relay = relay
		publishers = append(publishers, relay)
		logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("Event relay enabled")
	}
	a.Publisher = publishers

	// Repositories
	ownerRepo := postgres.NewOwnerRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	templateRepo := postgres.NewRecurringTemplateRepository(pool)
	obligationRepo := postgres.NewObligationRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	settingsRepo := postgres.NewNotificationSettingsRepository(pool)

	httpClient := notify.NewHTTPClient()
	a.Dispatcher = notify.NewDispatcher(logger, notify.DispatcherConfig{Timeout: cfg.Notify.ProviderTimeout},
		notify.NewEmailProvider(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}),
		notify.NewPushoverProvider(httpClient, ""),
		notify.NewDiscordProvider(httpClient),
		notify.NewSlackProvider(httpClient),
	)

	// Services
	a.Auth = service.NewAuthService(ownerRepo)
	a.Categories = service.NewCategoryService(categoryRepo, a.Cache)
	a.Templates = service.NewTemplateService(templateRepo, obligationRepo, categoryRepo, a.Cache, a.Publisher, logger, cfg.Horizon.Months)
	a.Obligations = service.NewObligationService(obligationRepo, categoryRepo, a.Cache, a.Publisher, logger)
	a.Payments = service.NewPaymentService(paymentRepo, a.Cache, a.Publisher, logger)
	a.Settings = service.NewNotificationSettingsService(settingsRepo, ownerRepo, a.Dispatcher, a.Cache, a.Publisher, logger)
	a.Jobs = service.NewJobRunner(settingsRepo, categoryRepo, a.Obligations, a.Settings, a.Dispatcher, cfg.Notify.Workers, logger)

	a.Scheduler, err = service.NewNotificationScheduler(a.Jobs, logger, service.SchedulerConfig{
		Location:   cfg.Scheduler.Location,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	a.Horizon = service.NewHorizonWorker(a.Templates, logger, service.HorizonWorkerConfig{Interval: cfg.Horizon.SyncInterval})

	return a, nil
}

// Close releases the relay and the pool
func (a *App) Close() {
	if a.relay != nil {
		a.relay.Close()
	}
	a.Pool.Close()
}
