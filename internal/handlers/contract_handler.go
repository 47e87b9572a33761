package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/services"
)

type ContractHandler struct {
	service contractApplicationService
}

type contractApplicationService interface {
	GetContract(ctx context.Context, actor models.Actor, contractID int64) (*models.ContractDetail, error)
	ListContracts(ctx context.Context, actor models.Actor) ([]models.Contract, error)
	CancelContract(ctx context.Context, actor models.Actor, contractID int64, reason string) (*models.Contract, error)
	GetContext(ctx context.Context, actor models.Actor, counterpartID int64) (*models.WorkflowContext, error)
}

func NewContractHandler(service *services.WorkflowService) *ContractHandler {
	return &ContractHandler{service: service}
}

type cancelContractBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *ContractHandler) ListContracts(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}

	contracts, err := h.service.ListContracts(c.Context(), actor)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"contracts": contracts})
}

func (h *ContractHandler) GetContract(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	contractID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid contract id")
	}

	contract, err := h.service.GetContract(c.Context(), actor, contractID)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"contract": contract})
}

func (h *ContractHandler) CancelContract(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	contractID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid contract id")
	}

	var req cancelContractBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if err := validateBody(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	contract, err := h.service.CancelContract(c.Context(), actor, contractID, req.Reason)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"contract": contract})
}

// GetContext serves the messaging collaborator: which workflow entity a
// conversation with counterpart_id is about.
func (h *ContractHandler) GetContext(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}

	counterpartID, err := strconv.ParseInt(c.Query("counterpart_id"), 10, 64)
	if err != nil || counterpartID <= 0 {
		return badRequest(c, "counterpart_id must be a positive integer")
	}

	workflowContext, err := h.service.GetContext(c.Context(), actor, counterpartID)
	if err != nil {
		return mapWorkflowError(c, err)
	}
	return c.JSON(fiber.Map{"context": workflowContext})
}
