package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/repository"
)

const (
	opSchedule               = "schedule"
	opRequestReschedule      = "requestReschedule"
	opClearRescheduleRequest = "clearRescheduleRequest"
	opAttachMeetingLink      = "attachMeetingLink"
	opStart                  = "start"
	opComplete               = "complete"

	schedulingGrace = time.Minute
)

// SessionLifecycle applies per-session transitions:
// scheduled (possibly without a time) -> in_progress -> completed.
// Sessions of one contract may progress in any order.
type SessionLifecycle struct {
	now func() time.Time
}

func NewSessionLifecycle(now func() time.Time) *SessionLifecycle {
	if now == nil {
		now = time.Now
	}
	return &SessionLifecycle{now: now}
}

type ScheduleInput struct {
	ScheduledAt     time.Time
	DurationMinutes int
}

type RescheduleInput struct {
	NewDate time.Time
	Reason  string
}

func (m *SessionLifecycle) validateFutureTime(op string, sessionID int64, at time.Time, field string) error {
	if at.IsZero() {
		return validationError(op, EntitySession, sessionID, field+" is required")
	}
	if at.Before(m.now().Add(-schedulingGrace)) {
		return validationError(op, EntitySession, sessionID, field+" must not be in the past")
	}
	return nil
}

// Schedule sets or replaces the session time. Approving a reschedule request
// is a Schedule call with the requested date; either way pending reschedule
// flags are cleared.
func (m *SessionLifecycle) Schedule(
	ctx context.Context,
	repos Repos,
	coachID int64,
	session *models.Session,
	input ScheduleInput,
) (*models.Session, error) {
	if input.DurationMinutes <= 0 {
		return nil, validationError(opSchedule, EntitySession, session.ID, "duration_minutes must be greater than 0")
	}
	if err := m.validateFutureTime(opSchedule, session.ID, input.ScheduledAt, "scheduled_at"); err != nil {
		return nil, err
	}
	if !session.Status.CanTransitionTo(models.SessionScheduled) {
		return nil, invalidStateError(opSchedule, EntitySession, session.ID, string(session.Status), "")
	}

	scheduledAt := input.ScheduledAt.UTC()
	if err := repos.Sessions.LockCoachCalendar(ctx, coachID); err != nil {
		return nil, err
	}
	hasConflict, err := repos.Sessions.HasCoachConflict(ctx, coachID, scheduledAt, input.DurationMinutes, session.ID)
	if err != nil {
		return nil, err
	}
	if hasConflict {
		return nil, conflictError(opSchedule, EntitySession, session.ID, "requested time overlaps another session of this coach")
	}

	updated, err := repos.Sessions.UpdateSchedule(ctx, session.ID, scheduledAt, input.DurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidStateError(opSchedule, EntitySession, session.ID, string(session.Status), "session changed concurrently")
		}
		return nil, err
	}
	return updated, nil
}

// RequestReschedule records a proposed new date without moving scheduled_at.
func (m *SessionLifecycle) RequestReschedule(
	ctx context.Context,
	repos Repos,
	requestedBy int64,
	session *models.Session,
	input RescheduleInput,
) (*models.Session, error) {
	if err := m.validateFutureTime(opRequestReschedule, session.ID, input.NewDate, "new_date"); err != nil {
		return nil, err
	}
	if session.Status != models.SessionScheduled {
		return nil, invalidStateError(opRequestReschedule, EntitySession, session.ID, string(session.Status), "")
	}
	if session.ScheduledAt == nil {
		return nil, invalidStateError(opRequestReschedule, EntitySession, session.ID, string(session.Status), "session has not been scheduled yet")
	}

	var reason *string
	if trimmed := strings.TrimSpace(input.Reason); trimmed != "" {
		reason = &trimmed
	}

	updated, err := repos.Sessions.MarkRescheduleRequested(ctx, session.ID, repository.RescheduleRequestInput{
		RequestedBy: requestedBy,
		NewDate:     input.NewDate.UTC(),
		Reason:      reason,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidStateError(opRequestReschedule, EntitySession, session.ID, string(session.Status), "session changed concurrently")
		}
		return nil, err
	}
	return updated, nil
}

// ClearRescheduleRequest rejects or withdraws a pending request; the original
// schedule stands. Clearing when nothing is pending is a no-op.
func (m *SessionLifecycle) ClearRescheduleRequest(
	ctx context.Context,
	repos Repos,
	session *models.Session,
) (*models.Session, bool, error) {
	if !session.RescheduleRequested {
		return session, false, nil
	}
	updated, err := repos.Sessions.ClearRescheduleRequest(ctx, session.ID)
	if err != nil {
		return nil, false, lookupError(err, opClearRescheduleRequest, EntitySession, session.ID)
	}
	return updated, true, nil
}

// AttachMeetingLink stores the link supplied by the video provider as-is.
func (m *SessionLifecycle) AttachMeetingLink(
	ctx context.Context,
	repos Repos,
	session *models.Session,
	link string,
) (*models.Session, error) {
	link = strings.TrimSpace(link)
	if !validMeetingLink(link) {
		return nil, validationError(opAttachMeetingLink, EntitySession, session.ID, "meeting_link must be an absolute http(s) URL")
	}
	if session.Status == models.SessionCompleted {
		return nil, invalidStateError(opAttachMeetingLink, EntitySession, session.ID, string(session.Status), "")
	}

	updated, err := repos.Sessions.SetMeetingLink(ctx, session.ID, link)
	if err != nil {
		return nil, lookupError(err, opAttachMeetingLink, EntitySession, session.ID)
	}
	return updated, nil
}

func validMeetingLink(link string) bool {
	if link == "" {
		return false
	}
	parsed, err := url.ParseRequestURI(link)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func (m *SessionLifecycle) Start(
	ctx context.Context,
	repos Repos,
	session *models.Session,
) (*models.Session, error) {
	if !session.Status.CanTransitionTo(models.SessionInProgress) {
		return nil, invalidStateError(opStart, EntitySession, session.ID, string(session.Status), "")
	}
	if session.ScheduledAt == nil {
		return nil, invalidStateError(opStart, EntitySession, session.ID, string(session.Status), "session has not been scheduled yet")
	}
	if session.RescheduleRequested {
		return nil, invalidStateError(opStart, EntitySession, session.ID, string(session.Status), "a reschedule request is pending")
	}

	return m.transition(ctx, repos, opStart, session, models.SessionInProgress)
}

func (m *SessionLifecycle) Complete(
	ctx context.Context,
	repos Repos,
	session *models.Session,
) (*models.Session, error) {
	if !session.Status.CanTransitionTo(models.SessionCompleted) {
		return nil, invalidStateError(opComplete, EntitySession, session.ID, string(session.Status), "")
	}
	if session.MeetingLink == nil || strings.TrimSpace(*session.MeetingLink) == "" {
		return nil, invalidStateError(opComplete, EntitySession, session.ID, string(session.Status), "meeting link must be attached before completion")
	}

	return m.transition(ctx, repos, opComplete, session, models.SessionCompleted)
}

func (m *SessionLifecycle) transition(
	ctx context.Context,
	repos Repos,
	op string,
	session *models.Session,
	next models.SessionStatus,
) (*models.Session, error) {
	updated, err := repos.Sessions.UpdateStatusIfCurrent(ctx, session.ID, session.Status, next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current := string(session.Status)
			if fresh, getErr := repos.Sessions.GetByID(ctx, session.ID); getErr == nil {
				current = string(fresh.Status)
			}
			return nil, invalidStateError(op, EntitySession, session.ID, current, "session changed concurrently")
		}
		return nil, err
	}
	return updated, nil
}
