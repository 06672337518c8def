package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	mongoadapter "github.com/robertarktes/hotel-booking-web/internal/adapters/mongo"
	"github.com/robertarktes/hotel-booking-web/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/hotel-booking-web/internal/adapters/redis"
	"github.com/robertarktes/hotel-booking-web/internal/api"
	"github.com/robertarktes/hotel-booking-web/internal/config"
	httphandler "github.com/robertarktes/hotel-booking-web/internal/http"
	"github.com/robertarktes/hotel-booking-web/internal/idempotency"
	"github.com/robertarktes/hotel-booking-web/internal/notify"
	"github.com/robertarktes/hotel-booking-web/internal/observability"
	"github.com/robertarktes/hotel-booking-web/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg, "hotel-web")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger(cfg.LogLevel)
	observability.InitMetrics()

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient)
	sessions := redisadapter.NewSessionStore(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache, cfg.RateLimitPerMin, time.Minute)

	checks := map[string]func(context.Context) error{"redis": redisCache.Ping}
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	deps := httphandler.Deps{
		Config:   cfg,
		API:      api.New(cfg.APIBaseURL, nil, api.WithTimeout(cfg.RequestTimeout), api.WithLogger(logger)),
		Sessions: sessions,
		Checks:   checks,
		Logger:   logger,
	}

	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit := mongoadapter.NewAuditLogger(mongoClient.Database(cfg.MongoDB), logger)
		notifiers = append(notifiers, audit)
		deps.RoomAudit = audit
		deps.Audit = audit
		checks["mongo"] = func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }
	}

	if cfg.RabbitURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitConn.Close()
		rabbitPub, err := rabbit.NewPublisher(rabbitConn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		defer rabbitPub.Close()
		notifiers = append(notifiers, rabbitPub)
	}
	deps.Notifier = notifiers

	handlers := httphandler.NewHandlers(deps)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
	}
	logger.Info("Server exiting")
}
