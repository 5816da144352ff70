package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"scanlog/internal/auth"
	"scanlog/internal/config"
	"scanlog/internal/kafka"
	"scanlog/internal/logger"
	"scanlog/internal/mailer"
	"scanlog/internal/models"
	"scanlog/internal/scans"
	scandb "scanlog/internal/scans/db"
	"scanlog/internal/scans/scan_api"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.LogDatabase("CONNECT", "scans", fmt.Sprintf("attempting PostgreSQL connection (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.LogDatabase("CONNECT", "scans", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// requestLogger writes one API log line per request with status and latency.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting scan log service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable, token verification will not be cached: %v", err))
		redisClient = nil
	} else {
		log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))
	}

	var publisher scans.EventPublisher
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.ScanRecorded,
			cfg.Kafka.Topics.ScanDeleted,
			cfg.Kafka.Topics.ScanSubmitted,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()
		publisher = producer

		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ScanSubmitted, cfg.Kafka.GroupID)
		defer consumer.Close()

		log.LogKafka("INIT", cfg.Kafka.Topics.ScanRecorded, "producer and consumer initialized")
	}

	scanService := scans.NewScanService(
		&scandb.DB{Bun: bunDB},
		mailer.NewMailer(cfg.Email),
		publisher,
		cfg.Scans,
	)

	handler := scan_api.NewHandler(scanService, log)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if consumer != nil {
		go consumer.Start(consumerCtx, func(submission models.ScanSubmission) error {
			scan, err := scanService.IngestSubmission(consumerCtx, submission)
			if err != nil {
				return err
			}
			log.LogScan("INGESTED", scan.Barcode, fmt.Sprintf("scan_id=%s via kafka", scan.ScanID))
			return nil
		})
		log.LogKafka("CONSUME", cfg.Kafka.Topics.ScanSubmitted, "consuming scanner submissions")
	}

	r := chi.NewRouter()
	r.Use(requestLogger(log))
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(auth.NewVerificationCache(redisClient)))
		r.Route("/api", func(r chi.Router) {
			handler.RegisterRoutes(r)
		})
	})
	log.Info("ROUTER", "Scan routes registered under /api/scans")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Scan log service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopConsumer()

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Scan log service shutdown complete")
	}
}
