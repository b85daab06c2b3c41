// Command faceauthd serves the face authentication API over HTTP.
//
// Configuration comes from the environment (optionally a .env file). Redis
// is always required; Postgres replaces the Redis profile and attempt
// stores when DATABASE_URL is set, and audit records are published to
// RabbitMQ when RABBITMQ_URL is set.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
	"github.com/MrEthical07/goFaceAuth/audit/amqpsink"
	"github.com/MrEthical07/goFaceAuth/config"
	"github.com/MrEthical07/goFaceAuth/httpapi"
	"github.com/MrEthical07/goFaceAuth/provider"
	"github.com/MrEthical07/goFaceAuth/store/postgres"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/stdr"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("faceauthd")

	settings, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	cfg, err := settings.EngineConfig()
	if err != nil {
		log.Fatalf("invalid engine config: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
	defer rdb.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStart()
	if err := rdb.Ping(startCtx).Err(); err != nil {
		log.Fatalf("redis unreachable at %s: %v", settings.RedisAddr, err)
	}

	faces, err := provider.NewHTTPClient(settings.ProviderURL, nil)
	if err != nil {
		log.Fatalf("invalid provider: %v", err)
	}

	builder := goFaceAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(faces).
		WithLogger(logger)

	if settings.DatabaseURL != "" {
		pool, err := postgres.Connect(startCtx, settings.DatabaseURL)
		if err != nil {
			log.Fatalf("cannot connect to postgres: %v", err)
		}
		defer pool.Close()

		pg := postgres.New(pool)
		if err := pg.EnsureSchema(startCtx); err != nil {
			log.Fatalf("cannot prepare schema: %v", err)
		}
		builder = builder.WithProfileStore(pg).WithAttemptStore(pg)
		logger.Info("using postgres for profiles and attempts")
	}

	if settings.RabbitMQURL != "" {
		sink, err := amqpsink.Dial(settings.RabbitMQURL, settings.AuditExchange, logger)
		if err != nil {
			log.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer sink.Close()
		builder = builder.WithAuditSink(sink)
		logger.Info("publishing audit records", "exchange", settings.AuditExchange)
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("engine build failed: %v", err)
	}
	defer engine.Close()

	router := httpapi.NewRouter(httpapi.NewHandler(engine, logger))

	port := settings.ServerPort
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           middleware.Logger(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error(err, "server shutdown failed")
	}
	logger.Info("server stopped")
}
