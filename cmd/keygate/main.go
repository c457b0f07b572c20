package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/keygate/adapters/custodian"
	"github.com/layer-3/keygate/adapters/directory"
	"github.com/layer-3/keygate/adapters/events"
	"github.com/layer-3/keygate/adapters/store"
	"github.com/layer-3/keygate/config"
	"github.com/layer-3/keygate/ports"
	"github.com/layer-3/keygate/service"
	httptransport "github.com/layer-3/keygate/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run returns errors instead of exiting so deferred closes always happen
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := watermill.NewStdLogger(cfg.Debug, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis backs the session store and the event stream; only connect when one of them needs it
	var redisClient *redis.Client
	if cfg.StoreDriver == config.StoreDriverRedis || cfg.EventsEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	var sessions ports.SessionStore
	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		sessions = store.NewRedisStore(redisClient)
	default:
		sessions = store.NewMemoryStore()
	}

	backend, err := custodian.NewHTTPClient(custodian.Config{
		BaseURL: cfg.CustodianURL,
		APIKey:  cfg.CustodianAPIKey,
		Timeout: cfg.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create custodian client: %w", err)
	}

	pemKey, err := cfg.PublicKeyPEM()
	if err != nil {
		return fmt.Errorf("failed to read auth public key: %w", err)
	}
	users, err := directory.NewJWTDirectoryFromPEM(pemKey, cfg.AuthAudience)
	if err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.EventsEnabled {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		defer publisher.Close()
		eventPub = events.NewWatermillPublisher(publisher, cfg.EventsTopicPrefix)
	}

	gate := service.NewOwnershipGate(backend, logger, cfg.OwnershipTTL())
	broker := service.NewBroker(backend, sessions, gate, eventPub, logger)
	delegates := service.NewDelegateRegistry(backend, gate, logger)

	if cfg.EventsEnabled {
		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        redisClient,
				ConsumerGroup: "keygate",
			},
			logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis subscriber: %w", err)
		}
		defer subscriber.Close()

		go func() {
			if err := events.ConsumeWalletDeleted(ctx, subscriber, cfg.EventsTopicPrefix, logger, broker.ForgetWallet); err != nil {
				logger.Error("Wallet deletion consumer stopped", err, nil)
			}
		}()
	}

	// Setup Gin router
	router := httptransport.SetupRouter(broker, delegates, users)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting keygate", watermill.LogFields{"addr": cfg.HTTPAddr, "store": cfg.StoreDriver})
	return serve(ctx, srv, logger)
}
