package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/types"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// envelope is the single response shape of the API.
type envelope struct {
	Status     string            `json:"status"`
	Data       any               `json:"data,omitempty"`
	Pagination *types.Pagination `json:"pagination,omitempty"`
	Message    string            `json:"message,omitempty"`
	Details    string            `json:"details,omitempty"`
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(envelope{Status: statusSuccess, Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(envelope{Status: statusSuccess, Data: data})
}

func paged[T any](c *fiber.Ctx, page *types.Page[T]) error {
	return c.JSON(envelope{Status: statusSuccess, Data: page.Items, Pagination: &page.Pagination})
}

func message(c *fiber.Ctx, msg string) error {
	return c.JSON(envelope{Status: statusSuccess, Message: msg})
}

// parseBody decodes a JSON request body whatever its Content-Type,
// reporting malformed input as a validation error.
func parseBody(c *fiber.Ctx, target any) error {
	body := c.Body()
	if len(body) == 0 {
		return apperr.Validation("request body is required")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid request body", Err: err}
	}
	return nil
}
