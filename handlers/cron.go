// handlers/cron.go - Scheduler-triggered expiry pass
package handlers

import (
	"crypto/subtle"
	"log"

	"questlock/utils"

	"github.com/gofiber/fiber/v2"
)

// ExpireQuests runs one sweeper pass for external schedulers. It is disabled
// when CRON_SECRET is empty.
// GET /api/cron/expire-tasks?token=
func ExpireQuests(c *fiber.Ctx) error {
	if cfg.CronSecret == "" || sweeper == nil {
		return utils.JSONError(c, 404, CodeNotFound, "Not found")
	}
	token := c.Query("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.CronSecret)) != 1 {
		return utils.JSONError(c, 401, "", "Invalid cron token")
	}

	result, err := sweeper.SweepOnce(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("⏰ Cron expiry pass: %d failed, %d conflicts, %d errors", len(result.Failed), result.Conflicts, result.Errors)
	return utils.Success(c, fiber.Map{
		"expired":   len(result.Failed),
		"conflicts": result.Conflicts,
		"errors":    result.Errors,
		"skipped":   result.Skipped,
		"tasks":     result.Failed,
	})
}
