package models

import "time"

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractCompleted ContractStatus = "completed"
	ContractCancelled ContractStatus = "cancelled"
)

var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractActive:    {ContractCompleted, ContractCancelled},
	ContractCompleted: {},
	ContractCancelled: {},
}

func (s ContractStatus) Valid() bool {
	_, ok := contractTransitions[s]
	return ok
}

func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	for _, allowed := range contractTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s ContractStatus) Terminal() bool {
	return len(contractTransitions[s]) == 0
}

type Contract struct {
	ID                int64          `json:"id"`
	RequestID         int64          `json:"request_id"`
	ProposalID        int64          `json:"proposal_id"`
	StudentID         int64          `json:"student_id"`
	CoachID           int64          `json:"coach_id"`
	Rate              float64        `json:"rate"`
	TotalSessions     int            `json:"total_sessions"`
	CompletedSessions int            `json:"completed_sessions"`
	TotalAmount       float64        `json:"total_amount"`
	Status            ContractStatus `json:"status"`
	CancelReason      *string        `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (c *Contract) IsParticipant(userID int64) bool {
	return c.StudentID == userID || c.CoachID == userID
}

type ContractDetail struct {
	Contract
	Sessions []Session `json:"sessions"`
}
