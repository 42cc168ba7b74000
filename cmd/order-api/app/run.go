package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aq2208/gorder-inventory/configs"
	"github.com/aq2208/gorder-inventory/internal/adapter/cache"
	"github.com/aq2208/gorder-inventory/internal/adapter/http"
	"github.com/aq2208/gorder-inventory/internal/adapter/kafka"
	"github.com/aq2208/gorder-inventory/internal/adapter/observ"
	"github.com/aq2208/gorder-inventory/internal/adapter/queue"
	"github.com/aq2208/gorder-inventory/internal/adapter/repo"
	"github.com/aq2208/gorder-inventory/internal/logging"
	"github.com/aq2208/gorder-inventory/internal/security"
	"github.com/aq2208/gorder-inventory/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Router *gin.Engine
}

// InitWithConfig builds the whole object graph. Redis, RabbitMQ and Kafka are
// optional: each is wired only when its address is configured. Consumers run
// until ctx is done.
func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	// init logger
	logger := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// init tracing
	shutdownTracing, err := observ.SetupTracing(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("tracing: %w", err))
	}
	closers = append(closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	})

	// init database
	db, err := repo.Open(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = db.Close() })
	logger.Info("order-api: Starting up...", "driver", cfg.Database.Driver)

	productRepo := repo.NewSQLProductRepo(db)
	orderRepo := repo.NewSQLOrderRepo(db)
	reserver := repo.NewSQLReserver(db)

	reserveOpts := []usecase.ReserveOption{}
	var statusCache usecase.OrderCache

	// init redis
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fail(fmt.Errorf("redis: %w", err))
		}
		closers = append(closers, func() { _ = rdb.Close() })

		redisCache := cache.NewRedisCache(rdb, cfg.Cache.StatusTTL)
		statusCache = redisCache
		reserveOpts = append(reserveOpts,
			usecase.WithIdempotency(cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)),
			usecase.WithOrderCache(redisCache),
		)
	}

	// init rabbitmq
	var (
		events usecase.EventPublisher
		ch     *amqp091.Channel
	)
	if cfg.Rabbit.URL != "" {
		conn, err := amqp091.Dial(cfg.Rabbit.URL)
		if err != nil {
			return fail(fmt.Errorf("rabbitmq: %w", err))
		}
		closers = append(closers, func() { _ = conn.Close() })

		pubCh, err := conn.Channel()
		if err != nil {
			return fail(fmt.Errorf("rabbitmq channel: %w", err))
		}
		if err := queue.DeclareExchange(pubCh, cfg.Rabbit.Exchange); err != nil {
			return fail(err)
		}
		producer, err := queue.NewRabbitProducer(pubCh, cfg.Rabbit.Exchange)
		if err != nil {
			return fail(err)
		}
		events = producer
		reserveOpts = append(reserveOpts, usecase.WithPublisher(producer))

		if cfg.Rabbit.ConsumePayments {
			// confirm mode stays on the publishing channel; consumers get their own
			ch, err = conn.Channel()
			if err != nil {
				return fail(fmt.Errorf("rabbitmq channel: %w", err))
			}
		}
	}

	// usecases
	catalog := usecase.NewCatalog(productRepo)
	reserve := usecase.NewReserveOrder(productRepo, orderRepo, reserver, reserveOpts...)
	lifecycle := usecase.NewOrderLifecycle(orderRepo, statusCache, events)

	secret, err := security.LoadWebhookSecret(cfg)
	if err != nil {
		return fail(err)
	}
	signer, err := security.NewWebhookSigner(secret)
	if err != nil {
		return fail(err)
	}
	webhook := usecase.NewPaymentWebhook(signer, lifecycle, usecase.WithMaxSkew(cfg.MaxSkew()))

	// register queue-handler
	if ch != nil {
		if err := setupQueue(ctx, cfg, ch, webhook); err != nil {
			return fail(err)
		}
	}

	// register kafka-listener
	if len(cfg.Kafka.Brokers) > 0 {
		closeGroup, err := setupKafkaListener(ctx, cfg, lifecycle)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeGroup)
	}

	// init handlers + routers + middleware
	var exposed http.Signer
	if cfg.Webhook.ExposeSigner {
		exposed = signer
	}
	timeout := cfg.HTTP.RequestTimeout
	router := http.NewRouter(http.Handlers{
		Products: http.NewProductHandler(catalog, timeout),
		Orders:   http.NewOrderHandler(reserve, lifecycle, timeout),
		Webhooks: http.NewWebhookHandler(webhook, exposed, timeout),
	})

	return &App{Router: router}, cleanup, nil
}

func setupQueue(ctx context.Context, cfg configs.Config, ch *amqp091.Channel, webhook *usecase.PaymentWebhook) error {
	if err := queue.DeclareExchange(ch, cfg.Rabbit.Exchange); err != nil {
		return err
	}
	if err := queue.DeclareQueue(ch, cfg.Rabbit.Exchange, cfg.Rabbit.PaymentQueue, cfg.Rabbit.PaymentKey); err != nil {
		return err
	}

	router := queue.NewRouter(ch, queue.WithPrefetch(cfg.Rabbit.Prefetch))
	router.Register(cfg.Rabbit.PaymentQueue, queue.NewPaymentEventHandler(webhook))
	return router.Start(ctx)
}

func setupKafkaListener(ctx context.Context, cfg configs.Config, lifecycle *usecase.OrderLifecycle) (func(), error) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}

	h := kafka.NewOrderStatusChangedHandler(lifecycle)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicStatus}, h.Handle)

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			consumer.Logger.Error("kafka consumer stopped", "err", err)
		}
	}()
	return func() { _ = grp.Close() }, nil
}
