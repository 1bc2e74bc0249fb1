package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/engine"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/reference"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/infra/config"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	relay "staybook/internal/infra/outbox"
	"staybook/internal/infra/security"
	"staybook/internal/infra/storage/memory"
)

const devJWTSecret = "staybook-dev-secret"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := obs.NewLogger(getenv("APP_ENV", "dev"))
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	if err := loadFixtures(ctx, cfg.CatalogFixtures, cfg.Currency, app.storage.seed, security.BcryptHasher{}, logger); err != nil {
		logger.Warn("catalog fixtures load failed", "error", err, "path", cfg.CatalogFixtures)
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := app.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox worker stopped", "error", err)
		}
	}()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.health, app.handlers)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting",
		"addr", cfg.HTTPAddr,
		"store", cfg.StoreDriver,
		"lock", cfg.LockDriver,
		"broker", cfg.EventsBroker,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	<-workerDone
	logger.Info("HTTP server stopped")
}

type application struct {
	storage  *storage
	worker   *relay.Worker
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	closers  []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{}
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.storage = store
	app.closers = append(app.closers, store.close)

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.closers = append(app.closers, closeLocker)

	producer, closeProducer, err := openProducer(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.closers = append(app.closers, closeProducer)

	calc, err := pricing.NewCalculator(cfg.TaxRate)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	refs, err := reference.NewGenerator(cfg.ReferencePrefix, cfg.ReferenceLength, cfg.ReferenceMaxAttempts)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	// Maintenance windows come from fixtures and live in memory whatever the store driver.
	maintenance := memory.NewMaintenanceSchedule()
	store.seed.maintenance = func(_ context.Context, unit booking.UnitKey, dr daterange.DateRange) error {
		return maintenance.Add(unit, dr)
	}

	worker := relay.NewWorker(store.relay, producer)
	worker.Interval = cfg.OutboxPollInterval
	worker.TopicPrefix = cfg.KafkaTopicPrefix
	worker.Backoff = cfg.RetryBackoff
	worker.Logger = logger
	app.worker = worker

	eng := &engine.Engine{
		Catalog:                store.catalog,
		Directory:              store.directory,
		UoWFactory:             store.factory,
		Locker:                 locker,
		Pricing:                calc,
		References:             refs,
		Encoder:                outbox.JSONEventEncoder{},
		Logger:                 logger,
		Maintenance:            maintenance,
		FreeCancellationWindow: cfg.FreeCancellationWindow,
		LatePenaltyPercent:     cfg.LateCancellationPenalty,
		SettleOnRead:           cfg.SettleOnRead,
	}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(commandBus, queryBus, eng)

	validator := middleware.NewStructValidator()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(validator),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Idempotency(store.idempotency, nil, locker),
		middleware.OutboxFlush(worker, logger),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using development secret")
		secret = devJWTSecret
	}
	tokens := security.NewTokenIssuer(secret, cfg.TokenTTL)

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		Availability: ginserver.AvailabilityHandler{
			Queries: queryBusWithMiddleware,
			Logger:  logger,
		},
		Auth: ginserver.AuthHandler{
			Directory: store.directory,
			Passwords: security.BcryptHasher{},
			Tokens:    tokens,
			Logger:    logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Tokens: tokens, Logger: logger}.Handle,
	}
	app.health = obs.HealthHandlers{Checks: map[string]obs.Check{"store": store.ping}}
	return app, nil
}

// close releases resources in reverse order of acquisition.
func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
