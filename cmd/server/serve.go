package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"
	"github.com/unibvs/bvs-backend/internal/config"
	"github.com/unibvs/bvs-backend/internal/database"
	"github.com/unibvs/bvs-backend/internal/events"
	"github.com/unibvs/bvs-backend/internal/handlers"
	"github.com/unibvs/bvs-backend/internal/logging"
	"github.com/unibvs/bvs-backend/internal/middleware"
	"github.com/unibvs/bvs-backend/internal/routes"
	"github.com/unibvs/bvs-backend/internal/services"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(current func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), current())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.DBPassword == "" {
		return errors.New("DB_PASSWORD environment variable is required")
	}

	if err := database.Connect(cfg); err != nil {
		return err
	}
	if err := database.Migrate(database.DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB, 5*time.Second)
	logging.Persist(logging.Setup(cfg.AppEnv), pgLogHandler)
	logging.StartCleanup(ctx, database.DB, cfg.LogRetentionDays)

	challenges, closeChallenges, err := challengeStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeChallenges()

	publisher, err := eventPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Services
	authService, err := services.NewAuthService(database.DB, cfg, challenges)
	if err != nil {
		return err
	}
	electionService := services.NewElectionService(database.DB, publisher)
	candidateService := services.NewCandidateService(database.DB)
	voterService := services.NewVoterService(database.DB)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		return c.Next()
	})

	routes.Setup(app, cfg, database.DB,
		handlers.NewAuthHandler(authService),
		handlers.NewHealthHandler(database.DB),
		handlers.NewElectionHandler(electionService),
		handlers.NewAdminHandler(candidateService, voterService),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	pgLogHandler.Stop()
	slog.Info("server stopped")
	return err
}

func challengeStore(ctx context.Context, cfg *config.Config) (services.ChallengeStore, func(), error) {
	if cfg.RedisURL == "" {
		store := services.NewMemoryChallengeStore()
		return store, store.Close, nil
	}
	client, err := services.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("webauthn challenges stored in redis")
	return services.NewRedisChallengeStore(client), func() { _ = client.Close() }, nil
}

func eventPublisher(cfg *config.Config) (events.Publisher, error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return events.LogPublisher{}, nil
	}
	publisher, err := events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	slog.Info("publishing election events to kafka", "topic", cfg.KafkaTopic)
	return publisher, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "action", c.Method()+" "+c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
