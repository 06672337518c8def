package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/hotel-booking-web/internal/adapters/rabbit"
	"github.com/robertarktes/hotel-booking-web/internal/config"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
)

const queue = "hotel.notifications.log"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.RabbitURL == "" {
		log.Fatal("RABBIT_URL is required")
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg, "hotel-notifier")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, queue, logger)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := notify.NewLogNotifier(logger)
	logger.WithField("queue", queue).Info("Notifier started")
	if err := consumer.Run(ctx, sink.Notify); err != nil {
		logger.WithError(err).Error("consumer stopped")
	}
	logger.Info("Shutdown notifier")
}
