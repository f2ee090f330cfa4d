package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/cart-sync/internal/config"
	"github.com/example/cart-sync/internal/email"
	"github.com/example/cart-sync/internal/infrastructure/kafka"
	"github.com/example/cart-sync/internal/notification"
	"github.com/example/cart-sync/internal/session"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Notifier] Failed to load config: %v", err)
	}
	brokers := cfg.Kafka.Brokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] Cart Sync - Removal Notice Service")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Kafka: %v", brokers)
	log.Printf("[Notifier] Topic: %s", cfg.Kafka.Topic)
	log.Printf("[Notifier] Group: %s", cfg.Kafka.GroupID)
	log.Printf("[Notifier] SMTP: %s:%s", cfg.SMTP.Host, cfg.SMTP.Port)

	handler := notification.NewHandler(email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From))

	consumer := kafka.NewConsumer(brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID,
		kafka.WithEventTypes(session.EventCartItemsRemoved))
	defer consumer.Close()

	go func() {
		log.Println("[Notifier] Starting event consumer...")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
			log.Printf("[Notifier] Consumer error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Notifier] Shutting down...")
	cancel()
}
