// utils/http.go - Fiber request and response helpers
package utils

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Success sends {"success": true} merged with data.
func Success(c *fiber.Ctx, data fiber.Map) error {
	return SuccessStatus(c, fiber.StatusOK, data)
}

// SuccessStatus is Success with an explicit status code.
func SuccessStatus(c *fiber.Ctx, status int, data fiber.Map) error {
	response := fiber.Map{"success": true}
	for k, v := range data {
		response[k] = v
	}
	return c.Status(status).JSON(response)
}

// JSONError sends a JSON error response
func JSONError(c *fiber.Ctx, status int, code, message string) error {
	body := fiber.Map{
		"success": false,
		"error":   message,
	}
	if code != "" {
		body["code"] = code
	}
	return c.Status(status).JSON(body)
}

// ParamID parses a positive numeric route parameter.
func ParamID(c *fiber.Ctx, key string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+key)
	}
	return uint(id), nil
}

// QueryTime parses an RFC 3339 query parameter. Missing means zero time.
func QueryTime(c *fiber.Ctx, key string) (time.Time, bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fiber.NewError(fiber.StatusBadRequest, "Invalid "+key+" timestamp, want RFC 3339")
	}
	return t.UTC(), true, nil
}

// QueryBool reads a boolean query parameter, treating anything unparsable as false.
func QueryBool(c *fiber.Ctx, key string) bool {
	b, err := strconv.ParseBool(c.Query(key))
	return err == nil && b
}
