// handlers/errors.go - Domain error to HTTP mapping
package handlers

import (
	"errors"
	"log"

	"questlock/services"
	"questlock/services/provider"
	"questlock/utils"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in the "code" field.
const (
	CodeValidation   = "validation"
	CodeNotFound     = "not_found"
	CodeForbidden    = "forbidden"
	CodeConflict     = "state_conflict"
	CodeInsufficient = "insufficient_resource"
	CodeProvider     = "provider_error"
	CodeInternal     = "internal"
)

// respondError writes the JSON error for err. Unknown errors are logged and
// returned as 500 with the message masked in production.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validation   *services.ValidationError
		notFound     *services.NotFoundError
		forbidden    *services.AuthorizationError
		conflict     *services.StateConflictError
		insufficient *services.InsufficientResourceError
		external     *services.ExternalProviderError
		fiberErr     *fiber.Error
	)

	switch {
	case errors.As(err, &validation):
		return utils.JSONError(c, fiber.StatusBadRequest, CodeValidation, validation.Error())
	case errors.As(err, &notFound):
		return utils.JSONError(c, fiber.StatusNotFound, CodeNotFound, notFound.Error())
	case errors.As(err, &forbidden):
		return utils.JSONError(c, fiber.StatusForbidden, CodeForbidden, "Quest does not belong to you")
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   conflict.Error(),
			"code":    CodeConflict,
			"status":  conflict.Status,
		})
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success":   false,
			"error":     insufficient.Error(),
			"code":      CodeInsufficient,
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.As(err, &external):
		log.Printf("❌ %v", err)
		message := "Quest generation is temporarily unavailable"
		if errors.Is(err, provider.ErrNotConfigured) {
			message = "Quest generation is not configured"
		}
		return utils.JSONError(c, fiber.StatusBadGateway, CodeProvider, message)
	case errors.As(err, &fiberErr):
		return utils.JSONError(c, fiberErr.Code, "", fiberErr.Message)
	}

	log.Printf("❌ Internal error on %s %s: %v", c.Method(), c.Path(), err)
	message := err.Error()
	if cfg != nil && cfg.IsProduction() {
		message = "An error occurred. Please try again later."
	}
	return utils.JSONError(c, fiber.StatusInternalServerError, CodeInternal, message)
}
