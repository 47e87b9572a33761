package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/repository"
	"github.com/saeid-a/CoachMarketBack/internal/services"
)

type SessionHandler struct {
	service sessionApplicationService
}

type sessionApplicationService interface {
	ListSessions(ctx context.Context, actor models.Actor, filter repository.SessionListFilter) ([]models.Session, error)
	GetSession(ctx context.Context, actor models.Actor, sessionID int64) (*models.SessionDetail, error)
	ScheduleSession(ctx context.Context, actor models.Actor, sessionID int64, input services.ScheduleInput) (*models.SessionDetail, error)
	RequestReschedule(ctx context.Context, actor models.Actor, sessionID int64, input services.RescheduleInput) (*models.SessionDetail, error)
	ClearRescheduleRequest(ctx context.Context, actor models.Actor, sessionID int64) (*models.SessionDetail, error)
	AttachMeetingLink(ctx context.Context, actor models.Actor, sessionID int64, link string) (*models.SessionDetail, error)
	StartSession(ctx context.Context, actor models.Actor, sessionID int64) (*models.SessionDetail, error)
	CompleteSession(ctx context.Context, actor models.Actor, sessionID int64) (*services.CompleteResult, error)
}

func NewSessionHandler(service *services.WorkflowService) *SessionHandler {
	return &SessionHandler{service: service}
}

type scheduleSessionRequest struct {
	ScheduledAt     string `json:"scheduled_at" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=1"`
}

type rescheduleRequest struct {
	NewDate string `json:"new_date" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
}

type meetingLinkRequest struct {
	MeetingLink string `json:"meeting_link" validate:"required,http_url"`
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	switch timeframe {
	case "", repository.TimeframeUpcoming, repository.TimeframePast, repository.TimeframeUnscheduled:
	default:
		return badRequest(c, "timeframe must be upcoming, past or unscheduled")
	}

	var contractID int64
	if raw := strings.TrimSpace(c.Query("contract_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return badRequest(c, "contract_id must be a positive integer")
		}
		contractID = parsed
	}

	sessions, err := h.service.ListSessions(c.Context(), actor, repository.SessionListFilter{
		ContractID: contractID,
		Status:     strings.TrimSpace(c.Query("status")),
		Timeframe:  timeframe,
	})
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	session, err := h.service.GetSession(c.Context(), actor, sessionID)
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

// ScheduleSession sets the time of a session. Sending the date from a pending
// reschedule request approves it.
func (h *SessionHandler) ScheduleSession(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req scheduleSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validateBody(req); err != nil {
		return badRequest(c, err.Error())
	}
	scheduledAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledAt))
	if err != nil {
		return badRequest(c, "scheduled_at must be a valid RFC3339 timestamp")
	}

	session, err := h.service.ScheduleSession(c.Context(), actor, sessionID, services.ScheduleInput{
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) RequestReschedule(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validateBody(req); err != nil {
		return badRequest(c, err.Error())
	}
	newDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.NewDate))
	if err != nil {
		return badRequest(c, "new_date must be a valid RFC3339 timestamp")
	}

	session, err := h.service.RequestReschedule(c.Context(), actor, sessionID, services.RescheduleInput{
		NewDate: newDate,
		Reason:  req.Reason,
	})
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ClearRescheduleRequest(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	session, err := h.service.ClearRescheduleRequest(c.Context(), actor, sessionID)
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) AttachMeetingLink(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	var req meetingLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.MeetingLink = strings.TrimSpace(req.MeetingLink)
	if err := validateBody(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.service.AttachMeetingLink(c.Context(), actor, sessionID, req.MeetingLink)
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	session, err := h.service.StartSession(c.Context(), actor, sessionID)
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CompleteSession(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseIDParam(c)
	if !ok {
		return badRequest(c, "Invalid session id")
	}

	result, err := h.service.CompleteSession(c.Context(), actor, sessionID)
	if err != nil {
		return mapWorkflowError(c, err)
	}

	return c.JSON(fiber.Map{"session": result.Session, "contract": result.Contract})
}
