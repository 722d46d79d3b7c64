// handlers/ai.go - AI generated quests
package handlers

import (
	"strings"

	"questlock/middleware"
	"questlock/models"
	"questlock/utils"

	"github.com/gofiber/fiber/v2"
)

// GetDailyQuests returns today's generated quests, generating the batch on
// the first call of the day.
// GET /api/ai/daily-tasks
func GetDailyQuests(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	if generator == nil {
		return utils.JSONError(c, 503, CodeProvider, "Quest generation is not available")
	}

	quests, err := generator.GenerateDailyQuests(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"tasks": quests, "count": len(quests)})
}

// SuggestQuest returns one generated quest without saving it.
// GET /api/ai/suggest[?difficulty=&special=true]
func SuggestQuest(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	if generator == nil {
		return utils.JSONError(c, 503, CodeProvider, "Quest generation is not available")
	}

	difficulty := models.Difficulty(strings.ToLower(c.Query("difficulty")))
	draft, err := generator.Suggest(c.UserContext(), userID, difficulty, utils.QueryBool(c, "special"))
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"task": draft})
}

// GET /api/ai/daily-challenge
func GetDailyChallenge(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	if generator == nil {
		return utils.JSONError(c, 503, CodeProvider, "Quest generation is not available")
	}

	quest, err := generator.DailyChallenge(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"task": quest})
}
