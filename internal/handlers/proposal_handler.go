package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/services"
)

type ProposalHandler struct {
	service proposalApplicationService
}

type proposalApplicationService interface {
	SubmitProposal(ctx context.Context, actor models.Actor, input services.SubmitProposalInput) (*models.Proposal, error)
	GetProposal(ctx context.Context, actor models.Actor, proposalID int64) (*models.Proposal, error)
	ListMyProposals(ctx context.Context, actor models.Actor) ([]models.Proposal, error)
	AcceptProposal(ctx context.Context, actor models.Actor, proposalID int64) (*services.AcceptResult, error)
	DeclineProposal(ctx context.Context, actor models.Actor, proposalID int64, reason string) (*models.Proposal, error)
}

func NewProposalHandler(service *services.WorkflowService) *ProposalHandler {
	return &ProposalHandler{service: service}
}

type submitProposalBody struct {
	RequestID       int64   `json:"request_id" validate:"gt=0"`
	PricePerSession float64 `json:"price_per_session" validate:"gt=0"`
	SessionCount    int     `json:"session_count" validate:"gte=1"`
	CoverLetter     string  `json:"cover_letter" validate:"max=5000"`
}

type declineProposalBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *ProposalHandler) SubmitProposal(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}

	var req submitProposalBody
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validateBody(req); err != nil {
		return badRequest(c, err.Error())
	}

	proposal, err := h.service.SubmitProposal(c.Context(), actor, services.SubmitProposalInput{
		RequestID:       req.RequestID,
		PricePerSession: req.PricePerSession,
		SessionCount:    req.SessionCount,
		CoverLetter:     req.CoverLetter,
	})
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"proposal": proposal})
}

func (h *ProposalHandler) ListMyProposals(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}

	proposals, err := h.service.ListMyProposals(c.Context(), actor)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"proposals": proposals})
}

func (h *ProposalHandler) GetProposal(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	proposalID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid proposal id")
	}

	proposal, err := h.service.GetProposal(c.Context(), actor, proposalID)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"proposal": proposal})
}

func (h *ProposalHandler) AcceptProposal(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	proposalID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid proposal id")
	}

	result, err := h.service.AcceptProposal(c.Context(), actor, proposalID)
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{
		"proposal": result.Proposal,
		"request":  result.Request,
		"contract": result.Contract,
		"declined": result.Declined,
	})
}

func (h *ProposalHandler) DeclineProposal(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	proposalID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid proposal id")
	}

	var req declineProposalBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := validateBody(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	proposal, err := h.service.DeclineProposal(c.Context(), actor, proposalID, req.Reason)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"proposal": proposal})
}
