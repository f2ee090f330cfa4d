package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/cart-sync/internal/account"
	"github.com/example/cart-sync/internal/api"
	"github.com/example/cart-sync/internal/auth"
	"github.com/example/cart-sync/internal/catalog"
	"github.com/example/cart-sync/internal/config"
	"github.com/example/cart-sync/internal/infrastructure/kafka"
	"github.com/example/cart-sync/internal/infrastructure/storage"
	"github.com/example/cart-sync/internal/localstore"
	"github.com/example/cart-sync/internal/session"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[API] Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[API] Invalid config: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] Cart Sync Service")
	log.Println("[API] ========================================")
	log.Printf("[API] Storage: %s", cfg.Storage.Backend)
	log.Printf("[API] Catalog: %s (concurrency %d)", cfg.Catalog.URL, cfg.Catalog.Concurrency)
	log.Printf("[API] Account: %s", cfg.Account.URL)
	log.Printf("[API] Cart max age: %s, session idle timeout: %s", cfg.Cart.MaxAge, cfg.Cart.IdleTimeout)

	backend, closeBackend, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("[API] Failed to open %s storage: %v", cfg.Storage.Backend, err)
	}
	defer closeBackend()

	var publisher session.Publisher = session.NopPublisher{}
	if cfg.PublishesEvents() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		log.Printf("[API] Kafka: %v topic %s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	} else {
		log.Println("[API] Kafka: disabled, session events are dropped")
	}

	validator := catalog.NewValidator(
		catalog.NewHTTPClient(cfg.Catalog.URL, cfg.Catalog.Timeout),
		catalog.WithConcurrency(cfg.Catalog.Concurrency),
	)
	accounts := account.NewHTTPSource(cfg.Account.URL, cfg.Account.Timeout)

	registry := session.NewRegistry(backend, validator, accounts,
		session.WithIdleTimeout(cfg.Cart.IdleTimeout),
		session.WithStoreOptions(localstore.WithMaxAge(cfg.Cart.MaxAge)),
		session.WithControllerOptions(session.WithPublisher(publisher)),
	)
	go registry.Run(ctx, time.Minute)

	router := api.NewRouter(api.RouterConfig{
		Handlers:   api.NewHandlers(registry),
		JWTService: auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry),
		Timeout:    cfg.Catalog.Timeout + 10*time.Second,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
}

// openStorage returns the configured backend and a func that releases it
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), noop, nil

	case config.BackendFile:
		f, err := storage.NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return f, noop, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Printf("[API] Connected to Redis at %s", cfg.RedisAddr)
		return storage.NewRedis(client, cfg.RedisTTL), func() { client.Close() }, nil

	case config.BackendPostgres:
		db, err := storage.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Println("[API] Connected to PostgreSQL")
		return pg, func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
}
