// handlers/quests.go - Quest lifecycle endpoints
package handlers

import (
	"log"
	"strings"
	"time"

	"questlock/middleware"
	"questlock/models"
	"questlock/services"
	"questlock/utils"

	"github.com/gofiber/fiber/v2"
)

type CompleteQuestRequest struct {
	TaskID uint   `json:"task_id"`
	Proof  string `json:"proof"`
}

type PunishmentRequest struct {
	TaskID       uint `json:"task_id"`
	PunishmentID uint `json:"punishment_id"`
}

// ListQuests returns the caller's quests, newest first. With ?since= it
// returns only quests updated after the cursor plus the next cursor.
// GET /api/quests[?status=&since=]
func ListQuests(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	since, polling, err := utils.QueryTime(c, "since")
	if err != nil {
		return respondError(c, err)
	}
	if polling {
		quests, cursor, err := questService.PollQuests(c.UserContext(), userID, since)
		if err != nil {
			return respondError(c, err)
		}
		return utils.Success(c, fiber.Map{
			"tasks":  quests,
			"cursor": cursor.Format(time.RFC3339Nano),
		})
	}

	var statuses []models.QuestStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, models.QuestStatus(strings.TrimSpace(s)))
		}
	}
	return listQuests(c, userID, statuses...)
}

// GET /api/quests/active
func ListActiveQuests(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	return listQuests(c, userID, models.QuestStatusActive)
}

// GET /api/quests/completed
func ListCompletedQuests(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	return listQuests(c, userID, models.QuestStatusCompleted)
}

func listQuests(c *fiber.Ctx, userID uint, statuses ...models.QuestStatus) error {
	quests, err := questService.ListQuests(c.UserContext(), userID, statuses...)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"tasks": quests, "count": len(quests)})
}

// GetSuggestions returns the static suggestion catalogue.
// GET /api/quests/suggest
func GetSuggestions(c *fiber.Ctx) error {
	return utils.Success(c, fiber.Map{"suggestions": questService.Suggestions()})
}

// GET /api/quests/:id
func GetQuest(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	questID, err := utils.ParamID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	quest, err := questService.GetQuest(c.UserContext(), questID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"task": quest})
}

// POST /api/quests
func CreateQuest(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req services.CreateQuestInput
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, CodeValidation, "Invalid request body")
	}

	quest, err := questService.CreateQuest(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("📝 User %d created quest %d (%s)", userID, quest.ID, quest.Difficulty)
	return utils.SuccessStatus(c, fiber.StatusCreated, fiber.Map{"task": quest})
}

// POST /api/quests/accept-suggestion
func AcceptSuggestion(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req services.SuggestionInput
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, CodeValidation, "Invalid request body")
	}

	quest, err := questService.AcceptSuggestion(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessStatus(c, fiber.StatusCreated, fiber.Map{"task": quest})
}

// POST /api/quests/complete
func CompleteQuest(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req CompleteQuestRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, CodeValidation, "Invalid request body")
	}
	if req.TaskID == 0 {
		return utils.JSONError(c, 400, CodeValidation, "task_id is required")
	}

	result, err := questService.CompleteQuest(c.UserContext(), req.TaskID, userID, req.Proof)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{
		"task":        result.Quest,
		"user":        userInfo(result.User),
		"progression": result.Progression,
	})
}

// POST /api/quests/punishment
func ApplyPunishment(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req PunishmentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, CodeValidation, "Invalid request body")
	}
	if req.TaskID == 0 || req.PunishmentID == 0 {
		return utils.JSONError(c, 400, CodeValidation, "task_id and punishment_id are required")
	}

	result, err := questService.ApplyPunishment(c.UserContext(), req.TaskID, userID, req.PunishmentID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{
		"task":       result.Quest,
		"punishment": result.Punishment,
		"user":       userInfo(result.User),
	})
}
