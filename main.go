// main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"questlock/config"
	"questlock/database"
	"questlock/handlers"
	"questlock/middleware"
	"questlock/services"
	"questlock/services/provider"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	// Validate critical environment variables
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	middleware.SetJWTSecret(cfg.JWTSecret)

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer database.CloseDB()
	store := database.NewStore(database.GetDB())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := func() time.Time { return time.Now().UTC() }
	hub := services.NewBroadcaster()
	quests := services.NewQuestService(store, hub, clock)
	generator := services.NewGenerator(quests, store, newProvider(cfg), cfg.Location())

	sweeper := services.NewSweeper(quests, store, clock, cfg.SweepInterval, cfg.SweepLeaseTTL)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	handlers.Init(handlers.Deps{
		Quests:      quests,
		Generator:   generator,
		Broadcaster: hub,
		Sweeper:     sweeper,
		Store:       store,
		Config:      cfg,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: newErrorHandler(cfg),
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		// Generation can retry the provider several times
		WriteTimeout: 2 * time.Minute,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	var authLimit fiber.Handler
	if cfg.RateLimitEnabled {
		general := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		auth := middleware.NewRateLimiter(cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow)
		general.StartCleanup(ctx)
		auth.StartCleanup(ctx)
		app.Use(middleware.FiberRateLimitMiddleware(general))
		authLimit = middleware.FiberAuthRateLimitMiddleware(auth)
	}

	handlers.RegisterRoutes(app, authLimit)

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 HTTP server starting on port %s", cfg.Port)
	log.Printf("📊 Environment: %s", cfg.AppEnv)
	log.Printf("🗄️  Database driver: %s", cfg.DBDriver)
	log.Printf("⏰ Expiry sweep every %s", cfg.SweepInterval)
	log.Printf("🤖 Quest provider configured: %v", cfg.MistralAPIKey != "")
	log.Printf("🌐 WebSocket available at ws://localhost:%s/ws", cfg.Port)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start HTTP server:", err)
	}
}

func newProvider(cfg *config.Config) provider.Client {
	if cfg.MistralAPIKey == "" {
		log.Println("⚠️ MISTRAL_API_KEY not set, AI quest generation is disabled")
		return provider.Disabled{}
	}
	return provider.NewMistral(provider.MistralConfig{
		APIKey:     cfg.MistralAPIKey,
		BaseURL:    cfg.MistralBaseURL,
		Model:      cfg.MistralModel,
		Timeout:    cfg.AITimeout,
		MaxRetries: cfg.AIMaxRetries,
	})
}

func newErrorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		} else {
			log.Printf("❌ Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
		}

		// Don't expose internal errors in production
		if cfg.IsProduction() && code == 500 {
			message = "An error occurred. Please try again later."
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}
