package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/reedzbet/backend/internal/auth"
	"github.com/reedzbet/backend/internal/betting"
	rediscache "github.com/reedzbet/backend/internal/cache/redis"
	"github.com/reedzbet/backend/internal/config"
	"github.com/reedzbet/backend/internal/db"
	"github.com/reedzbet/backend/internal/mail"
	"github.com/reedzbet/backend/internal/metrics"
	"github.com/reedzbet/backend/internal/router"
	"github.com/reedzbet/backend/internal/users"
	"github.com/reedzbet/backend/internal/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := db.EnsureSchema(ctx, pool); err != nil {
		slog.Error("Schema setup failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Redis is optional: without it the leaderboard reads straight from
	// Postgres on every request.
	var leaderboardCache *rediscache.LeaderboardCache
	redisClient, err := rediscache.New(ctx, rediscache.ClientConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Warn("Redis unavailable, leaderboard caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		leaderboardCache = rediscache.NewLeaderboardCache(redisClient)
		slog.Info("Connected to Redis")
	}

	mailer := mail.New(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if !mailer.Configured() {
		slog.Warn("SMTP credentials not configured, password reset emails will fail")
	}

	// Betting
	betRepo := betting.NewRepository(pool)
	var invalidator betting.LeaderboardInvalidator
	if leaderboardCache != nil {
		invalidator = leaderboardCache
	}
	betSvc := betting.NewService(betRepo, invalidator, logger)

	// Users
	userRepo := users.NewRepository(pool)
	var boardCache users.LeaderboardCache
	if leaderboardCache != nil {
		boardCache = leaderboardCache
	}
	userSvc := users.NewService(userRepo, boardCache, logger)

	// Background workers
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewCloseExpiredWorker(betSvc, logger))
	river.AddWorker(riverWorkers, workers.NewResetEmailWorker(mailer, logger))
	river.AddWorker(riverWorkers, workers.NewKeepAliveWorker(db.NewKeepAlive(pool), logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: riverWorkers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(time.Minute),
				func() (river.JobArgs, *river.InsertOpts) {
					return workers.CloseExpiredArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
			river.NewPeriodicJob(
				river.PeriodicInterval(24*time.Hour),
				func() (river.JobArgs, *river.InsertOpts) {
					return workers.KeepAliveArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// Auth. Reset emails go through the river queue so SMTP latency and
	// retries never block the request.
	authRepo := auth.NewRepository(pool)
	enqueueReset := func(ctx context.Context, email, code string) error {
		_, err := riverClient.Insert(ctx, workers.ResetEmailArgs{Email: email, Code: code}, nil)
		return err
	}
	authSvc := auth.NewService(authRepo, cfg.JWTSecret, cfg.AdminCode, enqueueReset)

	// Handlers and routes
	authHandler := auth.NewHandler(authSvc, logger)
	betHandler := betting.NewHandler(betSvc, logger)
	userHandler := users.NewHandler(userSvc, betSvc, logger)

	apiRouter := router.New(authHandler, betHandler, userHandler, authSvc, userRepo)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Prometheus metrics and health on a side port
	metrics.MustRegister()
	metrics.StartServer(cfg.MetricsPort, pool.Ping)

	// Start River client (processes jobs)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
