package models

import "time"

type SessionStatus string

const (
	SessionScheduled  SessionStatus = "scheduled"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// scheduled -> scheduled covers (re)scheduling, which never leaves the state.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled:  {SessionScheduled, SessionInProgress},
	SessionInProgress: {SessionCompleted},
	SessionCompleted:  {},
}

func (s SessionStatus) Valid() bool {
	_, ok := sessionTransitions[s]
	return ok
}

func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Session struct {
	ID                    int64         `json:"id"`
	ContractID            int64         `json:"contract_id"`
	SessionNumber         int           `json:"session_number"`
	Status                SessionStatus `json:"status"`
	ScheduledAt           *time.Time    `json:"scheduled_at"`
	DurationMinutes       int           `json:"duration_minutes"`
	MeetingLink           *string       `json:"meeting_link"`
	RescheduleRequested   bool          `json:"reschedule_requested"`
	RescheduleRequestedAt *time.Time    `json:"reschedule_requested_at,omitempty"`
	RescheduleRequestedBy *int64        `json:"reschedule_requested_by,omitempty"`
	NewRequestedDate      *time.Time    `json:"new_requested_date,omitempty"`
	RescheduleReason      *string       `json:"reschedule_reason,omitempty"`
	StartedAt             *time.Time    `json:"started_at,omitempty"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// IsUnscheduled reports the sub-state of scheduled where no time is set yet.
func (s *Session) IsUnscheduled() bool {
	return s.Status == SessionScheduled && s.ScheduledAt == nil
}

type SessionDetail struct {
	Session
	StudentID int64 `json:"student_id"`
	CoachID   int64 `json:"coach_id"`
}
