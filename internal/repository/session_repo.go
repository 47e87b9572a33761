package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saeid-a/CoachMarketBack/internal/models"
)

type RescheduleRequestInput struct {
	RequestedBy int64
	NewDate     time.Time
	Reason      *string
}

type SessionListFilter struct {
	ActorID    int64
	Role       string
	ContractID int64
	Status     string
	Timeframe  string
}

const (
	TimeframeUpcoming    = "upcoming"
	TimeframePast        = "past"
	TimeframeUnscheduled = "unscheduled"
)

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, contract_id, session_number, status, scheduled_at, duration_minutes, meeting_link,
	reschedule_requested, reschedule_requested_at, reschedule_requested_by, new_requested_date, reschedule_reason,
	started_at, completed_at, created_at, updated_at`

func scanSession(row rowScanner) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.ContractID,
		&session.SessionNumber,
		&session.Status,
		&session.ScheduledAt,
		&session.DurationMinutes,
		&session.MeetingLink,
		&session.RescheduleRequested,
		&session.RescheduleRequestedAt,
		&session.RescheduleRequestedBy,
		&session.NewRequestedDate,
		&session.RescheduleReason,
		&session.StartedAt,
		&session.CompletedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) queryList(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateForContract inserts sessions 1..count in a single statement.
func (r *SessionRepository) CreateForContract(
	ctx context.Context,
	contractID int64,
	count int,
	durationMinutes int,
) ([]models.Session, error) {
	query := `
		INSERT INTO contract_sessions (contract_id, session_number, status, duration_minutes)
		SELECT $1, n, 'scheduled', $3
		FROM generate_series(1, $2::int) AS n
		RETURNING ` + sessionColumns

	sessions, err := r.queryList(ctx, query, contractID, count, durationMinutes)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM contract_sessions WHERE id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM contract_sessions WHERE id = $1 FOR UPDATE`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) ListByContract(ctx context.Context, contractID int64) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM contract_sessions
		WHERE contract_id = $1
		ORDER BY session_number ASC
	`
	return r.queryList(ctx, query, contractID)
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, error) {
	actorColumn := "c.student_id"
	if filter.Role == models.RoleCoach {
		actorColumn = "c.coach_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if filter.ContractID > 0 {
		args = append(args, filter.ContractID)
		whereParts = append(whereParts, fmt.Sprintf("s.contract_id = $%d", len(args)))
	}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("s.status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case TimeframeUpcoming:
		whereParts = append(
			whereParts,
			"(s.scheduled_at + (s.duration_minutes * INTERVAL '1 minute')) > NOW()",
		)
	case TimeframePast:
		whereParts = append(
			whereParts,
			"(s.scheduled_at + (s.duration_minutes * INTERVAL '1 minute')) <= NOW()",
		)
	case TimeframeUnscheduled:
		whereParts = append(whereParts, "s.scheduled_at IS NULL")
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.contract_id, s.session_number, s.status, s.scheduled_at, s.duration_minutes, s.meeting_link,
		       s.reschedule_requested, s.reschedule_requested_at, s.reschedule_requested_by, s.new_requested_date,
		       s.reschedule_reason, s.started_at, s.completed_at, s.created_at, s.updated_at
		FROM contract_sessions s
		JOIN contracts c ON c.id = s.contract_id
		WHERE %s
		ORDER BY s.scheduled_at ASC NULLS LAST, s.contract_id ASC, s.session_number ASC
	`, strings.Join(whereParts, " AND "))

	return r.queryList(ctx, query, args...)
}

// UpdateSchedule sets the time and duration and drops any pending reschedule
// request in the same write.
func (r *SessionRepository) UpdateSchedule(
	ctx context.Context,
	sessionID int64,
	scheduledAt time.Time,
	durationMinutes int,
) (*models.Session, error) {
	query := `
		UPDATE contract_sessions
		SET scheduled_at = $2,
		    duration_minutes = $3,
		    reschedule_requested = FALSE,
		    reschedule_requested_at = NULL,
		    reschedule_requested_by = NULL,
		    new_requested_date = NULL,
		    reschedule_reason = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, scheduledAt, durationMinutes))
}

func (r *SessionRepository) MarkRescheduleRequested(
	ctx context.Context,
	sessionID int64,
	input RescheduleRequestInput,
) (*models.Session, error) {
	query := `
		UPDATE contract_sessions
		SET reschedule_requested = TRUE,
		    reschedule_requested_at = NOW(),
		    reschedule_requested_by = $2,
		    new_requested_date = $3,
		    reschedule_reason = $4,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled' AND scheduled_at IS NOT NULL
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, input.RequestedBy, input.NewDate, input.Reason))
}

func (r *SessionRepository) ClearRescheduleRequest(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `
		UPDATE contract_sessions
		SET reschedule_requested = FALSE,
		    reschedule_requested_at = NULL,
		    reschedule_requested_by = NULL,
		    new_requested_date = NULL,
		    reschedule_reason = NULL,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) ClearPendingReschedules(ctx context.Context, contractID int64) error {
	query := `
		UPDATE contract_sessions
		SET reschedule_requested = FALSE,
		    reschedule_requested_at = NULL,
		    reschedule_requested_by = NULL,
		    new_requested_date = NULL,
		    reschedule_reason = NULL,
		    updated_at = NOW()
		WHERE contract_id = $1 AND reschedule_requested
	`
	_, err := r.db.Exec(ctx, query, contractID)
	return err
}

func (r *SessionRepository) SetMeetingLink(
	ctx context.Context,
	sessionID int64,
	link string,
) (*models.Session, error) {
	query := `
		UPDATE contract_sessions
		SET meeting_link = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, link))
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) (*models.Session, error) {
	query := `
		UPDATE contract_sessions
		SET status = $3::text,
		    started_at = CASE WHEN $3::text = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $3::text = 'completed' THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

func (r *SessionRepository) CountCompleted(ctx context.Context, contractID int64) (int, error) {
	query := `SELECT COUNT(*) FROM contract_sessions WHERE contract_id = $1 AND status = 'completed'`
	var count int
	if err := r.db.QueryRow(ctx, query, contractID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LockCoachCalendar serializes scheduling writes for one coach until the
// surrounding transaction ends.
func (r *SessionRepository) LockCoachCalendar(ctx context.Context, coachID int64) error {
	_, err := r.db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", coachID)
	return err
}

// HasCoachConflict reports whether the coach already has another live session
// overlapping [requestedTime, requestedTime+duration).
func (r *SessionRepository) HasCoachConflict(
	ctx context.Context,
	coachID int64,
	requestedTime time.Time,
	durationMinutes int,
	excludedSessionID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM contract_sessions s
			JOIN contracts c ON c.id = s.contract_id
			WHERE c.coach_id = $1
			  AND c.status = 'active'
			  AND s.id <> $4
			  AND s.status <> 'completed'
			  AND s.scheduled_at IS NOT NULL
			  AND s.scheduled_at < ($2::timestamptz + ($3::int * INTERVAL '1 minute'))
			  AND (s.scheduled_at + (s.duration_minutes * INTERVAL '1 minute')) > $2::timestamptz
		)
	`
	var hasConflict bool
	if err := r.db.QueryRow(ctx, query, coachID, requestedTime, durationMinutes, excludedSessionID).Scan(&hasConflict); err != nil {
		return false, err
	}
	return hasConflict, nil
}
