package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/saeid-a/CoachMarketBack/internal/config"
	"github.com/saeid-a/CoachMarketBack/internal/database"
	"github.com/saeid-a/CoachMarketBack/internal/events"
	"github.com/saeid-a/CoachMarketBack/internal/logging"
	"github.com/saeid-a/CoachMarketBack/internal/routes"
	workflowws "github.com/saeid-a/CoachMarketBack/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	appLogger := logging.Setup(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		appLogger.Fatal().Msg("DB_URL is required")
	}
	if err := database.ConnectDB(ctx, cfg.DBUrl, database.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}); err != nil {
		appLogger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.CloseDB()

	// 3. Event fan-out
	hub := workflowws.NewHub(appLogger)
	go hub.Run(ctx)

	publishers := []events.Publisher{hub}
	if cfg.EventsEnabled() {
		redisClient, err := events.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisClient.Close()
		publishers = append(publishers, events.NewRedisPublisher(redisClient, cfg.EventsChannel))
		appLogger.Info().Str("channel", cfg.EventsChannel).Msg("Publishing workflow events to redis")
	}
	dispatcher := events.NewDispatcher(appLogger, cfg.EventPublishTimeout, publishers...)

	// 4. Setup Fiber
	app := fiber.New(fiber.Config{DisableStartupMessage: !cfg.IsDevelopment()})

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, routes.Dependencies{
		DB:         database.DB,
		Hub:        hub,
		Dispatcher: dispatcher,
		Logger:     appLogger,
	})

	// 5. Start Server
	go func() {
		<-ctx.Done()
		appLogger.Info().Msg("Shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			appLogger.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	appLogger.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		appLogger.Error().Err(err).Msg("Server stopped")
	}

	dispatcher.Wait()
}
