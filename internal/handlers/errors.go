package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/saeid-a/CoachMarketBack/internal/services"
)

// mapWorkflowError renders a service error. Invalid-state responses carry the
// entity's actual status so clients can reconcile without re-fetching.
func mapWorkflowError(c *fiber.Ctx, err error) error {
	kind := services.Kind(err)

	status := fiber.StatusInternalServerError
	switch kind {
	case "validation":
		status = fiber.StatusBadRequest
	case "forbidden":
		status = fiber.StatusForbidden
	case "not_found":
		status = fiber.StatusNotFound
	case "conflict", "invalid_state":
		status = fiber.StatusConflict
	}

	body := fiber.Map{"kind": kind}

	var wfErr *services.WorkflowError
	if errors.As(err, &wfErr) {
		body["operation"] = wfErr.Op
		body["entity"] = wfErr.Entity
		if wfErr.EntityID > 0 {
			body["entity_id"] = wfErr.EntityID
		}
		if wfErr.Status != "" {
			body["current_status"] = wfErr.Status
		}
	}

	switch status {
	case fiber.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.Path()).Str("kind", kind).Msg("workflow request failed")
		body["error"] = "Failed to process workflow request"
	case fiber.StatusForbidden:
		body["error"] = "Forbidden"
	default:
		body["error"] = err.Error()
	}

	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message, "kind": "validation"})
}
