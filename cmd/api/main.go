package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/subwatch/subwatch/internal/application"
	appai "github.com/subwatch/subwatch/internal/application/ai"
	appscans "github.com/subwatch/subwatch/internal/application/scans"
	appsubs "github.com/subwatch/subwatch/internal/application/subscriptions"
	"github.com/subwatch/subwatch/internal/config"
	"github.com/subwatch/subwatch/internal/domain/reports"
	scansdomain "github.com/subwatch/subwatch/internal/domain/scans"
	"github.com/subwatch/subwatch/internal/domain/scanerrors"
	subsdomain "github.com/subwatch/subwatch/internal/domain/subscriptions"
	aiclient "github.com/subwatch/subwatch/internal/infra/ai/openai"
	mysqldb "github.com/subwatch/subwatch/internal/infra/db/mysql"
	postgresdb "github.com/subwatch/subwatch/internal/infra/db/postgres"
	"github.com/subwatch/subwatch/internal/infra/httpserver"
	"github.com/subwatch/subwatch/internal/infra/mailbox/gmail"
	minioStore "github.com/subwatch/subwatch/internal/infra/storage"
	"github.com/subwatch/subwatch/internal/middleware"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "subwatch",
	})

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Fatal("config load", "error", err)
	}

	ctx := context.Background()

	var db *sql.DB
	var scanLogs scansdomain.Repository
	var subs subsdomain.Repository
	var scanErrs scanerrors.Repository

	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqldb.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			logger.Fatal("mysql connect", "error", err)
		}
		scanLogs = mysqldb.NewScanLogRepository(db)
		subs = mysqldb.NewSubscriptionRepository(db)
		scanErrs = mysqldb.NewScanErrorRepository(db)
	case "postgres", "":
		db, err = postgresdb.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			logger.Fatal("postgres connect", "error", err)
		}
		scanLogs = postgresdb.NewScanLogRepository(db)
		subs = postgresdb.NewSubscriptionRepository(db)
		scanErrs = postgresdb.NewScanErrorRepository(db)
	default:
		logger.Fatal("unknown database driver", "driver", cfg.Database.Driver)
	}
	defer db.Close()

	mailboxClient := gmail.NewClient(gmail.Credentials{
		ClientID:      cfg.Gmail.ClientID,
		ClientSecret:  cfg.Gmail.ClientSecret,
		RefreshToken:  cfg.Gmail.RefreshToken,
		TokenEndpoint: cfg.Gmail.TokenEndpoint,
	})

	ai := aiclient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// Report archiving is optional; without MinIO the scan still works,
	// the logs just carry no report URL.
	var archive reports.Archive
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Fatal("minio init", "error", err)
		}
		archive = store
	}

	scansSvc := &appscans.Service{
		Logs:    scanLogs,
		Subs:    subs,
		Errors:  scanErrs,
		Mailbox: mailboxClient,
		AI:      ai,
		Archive: archive,
		Clock:   application.SystemClock{},
		Logger:  logger,
	}
	subsSvc := &appsubs.Service{
		Repo:  subs,
		Clock: application.SystemClock{},
	}
	aiSvc := appai.NewService(ai)

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.RequestLogging(logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.BearerAuth(cfg.APIKeys))
	mux.Use(middleware.RateLimitMiddleware(30, 1))
	mux.Mount("/", httpserver.NewRouter(scansSvc, subsSvc, aiSvc, checkers))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", "error", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
