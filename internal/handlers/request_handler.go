package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/services"
)

type RequestHandler struct {
	service requestApplicationService
}

type requestApplicationService interface {
	CreateRequest(ctx context.Context, actor models.Actor, input services.CreateRequestInput) (*models.LearningRequest, error)
	GetRequest(ctx context.Context, requestID int64) (*models.LearningRequest, error)
	ListOpenRequests(ctx context.Context, page int, limit int) ([]models.LearningRequest, int, error)
	ListMyRequests(ctx context.Context, actor models.Actor) ([]models.LearningRequest, error)
	DeactivateRequest(ctx context.Context, actor models.Actor, requestID int64) (*models.LearningRequest, error)
	ListRequestProposals(ctx context.Context, actor models.Actor, requestID int64) ([]models.Proposal, error)
}

func NewRequestHandler(service *services.WorkflowService) *RequestHandler {
	return &RequestHandler{service: service}
}

type createRequestBody struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"max=5000"`
	Budget         *float64 `json:"budget" validate:"omitempty,gte=0"`
	SessionsNeeded int      `json:"sessions_needed" validate:"gte=1"`
}

func (h *RequestHandler) CreateRequest(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}

	var req createRequestBody
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validateBody(req); err != nil {
		return badRequest(c, err.Error())
	}

	request, err := h.service.CreateRequest(c.Context(), actor, services.CreateRequestInput{
		Title:          req.Title,
		Description:    req.Description,
		Budget:         req.Budget,
		SessionsNeeded: req.SessionsNeeded,
	})
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"request": request})
}

func (h *RequestHandler) ListOpenRequests(c *fiber.Ctx) error {
	if _, ok := actorFromCtx(c); !ok {
		return unauthorized(c)
	}

	page, limit := parsePageParams(c.Query("page"), c.Query("limit"))
	requests, total, err := h.service.ListOpenRequests(c.Context(), page, limit)
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{
		"requests":   requests,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *RequestHandler) ListMyRequests(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}

	requests, err := h.service.ListMyRequests(c.Context(), actor)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"requests": requests})
}

func (h *RequestHandler) GetRequest(c *fiber.Ctx) error {
	if _, ok := actorFromCtx(c); !ok {
		return unauthorized(c)
	}
	requestID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid request id")
	}

	request, err := h.service.GetRequest(c.Context(), requestID)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"request": request})
}

func (h *RequestHandler) ListRequestProposals(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	requestID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid request id")
	}

	proposals, err := h.service.ListRequestProposals(c.Context(), actor, requestID)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"proposals": proposals})
}

// DeactivateRequest is mounted under the internal group; it is also how a
// student withdraws their own request.
func (h *RequestHandler) DeactivateRequest(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	requestID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid request id")
	}

	request, err := h.service.DeactivateRequest(c.Context(), actor, requestID)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"request": request})
}
