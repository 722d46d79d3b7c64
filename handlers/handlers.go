// handlers/handlers.go - Handler wiring and routes
package handlers

import (
	"time"

	"questlock/config"
	"questlock/database"
	"questlock/middleware"
	"questlock/services"

	"github.com/gofiber/fiber/v2"
)

var (
	questService *services.QuestService
	generator    *services.Generator
	broadcaster  *services.Broadcaster
	sweeper      *services.Sweeper
	store        *database.Store
	cfg          *config.Config
)

// Deps are the services the handlers call into.
type Deps struct {
	Quests      *services.QuestService
	Generator   *services.Generator
	Broadcaster *services.Broadcaster
	Sweeper     *services.Sweeper
	Store       *database.Store
	Config      *config.Config
}

// Init installs the handler dependencies. It must run before serving.
func Init(d Deps) {
	if d.Quests == nil || d.Store == nil || d.Config == nil {
		panic("handlers.Init: quests, store and config are required")
	}
	questService = d.Quests
	generator = d.Generator
	broadcaster = d.Broadcaster
	sweeper = d.Sweeper
	store = d.Store
	cfg = d.Config
}

// RegisterRoutes mounts the API, websocket and health routes. authLimit, if
// non-nil, guards the auth group.
func RegisterRoutes(app *fiber.App, authLimit fiber.Handler) {
	api := app.Group("/api")

	authGroup := api.Group("/auth")
	if authLimit != nil {
		authGroup.Use(authLimit)
	}
	authGroup.Post("/register", Register)
	authGroup.Post("/login", Login)
	authGroup.Post("/logout", middleware.AuthMiddleware, Logout)

	// User routes (require authentication)
	userGroup := api.Group("/user", middleware.AuthMiddleware)
	userGroup.Get("/", GetCurrentUser)
	userGroup.Get("/stats", GetUserStats)

	questGroup := api.Group("/quests", middleware.AuthMiddleware)
	questGroup.Get("/", ListQuests)
	questGroup.Get("/active", ListActiveQuests)
	questGroup.Get("/completed", ListCompletedQuests)
	questGroup.Get("/suggest", GetSuggestions)
	questGroup.Post("/", CreateQuest)
	questGroup.Post("/accept-suggestion", AcceptSuggestion)
	questGroup.Post("/complete", CompleteQuest)
	questGroup.Post("/punishment", ApplyPunishment)
	questGroup.Get("/:id", GetQuest)

	aiGroup := api.Group("/ai", middleware.AuthMiddleware)
	aiGroup.Get("/daily-tasks", GetDailyQuests)
	aiGroup.Get("/suggest", SuggestQuest)
	aiGroup.Get("/daily-challenge", GetDailyChallenge)

	api.Get("/achievements", middleware.AuthMiddleware, GetAchievements)
	api.Post("/xpass/add", middleware.AuthMiddleware, AddXPass)

	api.Get("/cron/expire-tasks", ExpireQuests)

	app.Get("/ws", WebSocketUpgrade, WebSocketHandler())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"version":   "1.0.0",
		})
	})
}
