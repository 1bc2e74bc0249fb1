package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/catalog"
	"staybook/internal/domain/directory"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/broker/rabbitmq"
	"staybook/internal/infra/config"
	mongostore "staybook/internal/infra/db/mongo"
	"staybook/internal/infra/db/sqlstore"
	redislock "staybook/internal/infra/lock/redis"
	"staybook/internal/infra/obs"
	relay "staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
)

// seeder writes catalog and directory fixtures into whichever store is configured.
type seeder struct {
	accommodation func(ctx context.Context, acc catalog.Accommodation) error
	room          func(ctx context.Context, room catalog.Room) error
	user          func(ctx context.Context, user directory.User) error
	maintenance   func(ctx context.Context, unit booking.UnitKey, dr daterange.DateRange) error
}

type storage struct {
	catalog     catalog.Catalog
	directory   directory.Directory
	factory     uow.UoWFactory
	relay       appoutbox.RelayStore
	idempotency middleware.IdempotencyStore
	seed        seeder
	ping        obs.Check
	close       func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return openMemory(cfg), nil
	case config.StoreMongo:
		return openMongo(ctx, cfg, logger)
	case config.StorePostgres, config.StoreMySQL, config.StoreSQLite:
		return openSQL(cfg, logger)
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

func openMemory(cfg config.Config) *storage {
	cat := memory.NewCatalog()
	dir := memory.NewDirectory()
	box := memory.NewOutboxStore()
	return &storage{
		catalog:     cat,
		directory:   dir,
		factory:     memory.Factory{Store: memory.NewBookingStore(box)},
		relay:       box,
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		seed: seeder{
			accommodation: func(_ context.Context, acc catalog.Accommodation) error { return cat.PutAccommodation(acc) },
			room:          func(_ context.Context, room catalog.Room) error { return cat.PutRoom(room) },
			user:          func(_ context.Context, user directory.User) error { return dir.Put(user) },
		},
		ping:  func(context.Context) error { return nil },
		close: func(context.Context) error { return nil },
	}
}

func openMongo(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	bookings := mongostore.NewBookingRepository(client.DB)
	if err := bookings.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	box := relay.NewStore(client.DB)
	cat := mongostore.NewCatalogRepository(client.DB)
	users := mongostore.NewUserRepository(client.DB)
	logger.Info("mongo store ready", "db", cfg.MongoDB)
	return &storage{
		catalog:     cat,
		directory:   users,
		factory:     mongostore.Factory{DB: client.DB, Bookings: bookings, Outbox: box},
		relay:       box,
		idempotency: mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
		seed: seeder{
			accommodation: cat.PutAccommodation,
			room:          cat.PutRoom,
			user:          users.Put,
		},
		ping:  client.Ping,
		close: client.Close,
	}, nil
}

func openSQL(cfg config.Config, logger *slog.Logger) (*storage, error) {
	db, err := sqlstore.Open(cfg.StoreDriver, cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	cat := sqlstore.NewCatalogRepository(db)
	users := sqlstore.NewUserRepository(db)
	logger.Info("sql store ready", "driver", cfg.StoreDriver)
	return &storage{
		catalog:     cat,
		directory:   users,
		factory:     sqlstore.Factory{DB: db},
		relay:       sqlstore.NewOutboxStore(db),
		idempotency: sqlstore.NewIdempotencyStore(db, cfg.IdempotencyTTL),
		seed: seeder{
			accommodation: cat.PutAccommodation,
			room:          cat.PutRoom,
			user:          users.Put,
		},
		ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		close: func(context.Context) error { return sqlstore.Close(db) },
	}, nil
}

func openLocker(ctx context.Context, cfg config.Config) (policies.Locker, func(context.Context) error, error) {
	if cfg.LockDriver != config.LockRedis {
		return memory.NewLocker(), func(context.Context) error { return nil }, nil
	}
	client, err := redislock.NewClient(ctx, redislock.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	return redislock.NewLocker(client, cfg.LockTTL), func(context.Context) error { return client.Close() }, nil
}

func openProducer(cfg config.Config, logger *slog.Logger) (relay.Producer, func(context.Context) error, error) {
	switch cfg.EventsBroker {
	case config.BrokerKafka:
		saramaCfg := sarama.NewConfig()
		saramaCfg.ClientID = "staybook"
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, saramaCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		return producer, func(context.Context) error { return producer.Close() }, nil
	case config.BrokerRabbitMQ:
		publisher, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		return publisher, func(context.Context) error { return publisher.Close() }, nil
	}
	return relay.LogProducer{Logger: logger}, func(context.Context) error { return nil }, nil
}
