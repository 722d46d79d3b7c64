// handlers/users.go
package handlers

import (
	"questlock/middleware"
	"questlock/utils"

	"github.com/gofiber/fiber/v2"
)

type AddXPassRequest struct {
	Amount int `json:"amount"`
}

// GET /api/user
func GetCurrentUser(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	user, err := questService.GetUser(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"user": userInfo(user)})
}

// GET /api/user/stats
func GetUserStats(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	stats, err := questService.Stats(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"stats": stats})
}

// GET /api/achievements
func GetAchievements(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	achievements, err := questService.Achievements(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"achievements": achievements})
}

// POST /api/xpass/add
func AddXPass(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req AddXPassRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, CodeValidation, "Invalid request body")
	}

	user, err := questService.AddXPass(c.UserContext(), userID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.Map{"xpass": user.XPass, "user": userInfo(user)})
}
