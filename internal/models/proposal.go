package models

import "time"

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalDeclined ProposalStatus = "declined"
)

// DeclineReasonRequestFulfilled is stamped on sibling proposals when another
// proposal on the same request is accepted.
const DeclineReasonRequestFulfilled = "request fulfilled"

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalPending:  {ProposalAccepted, ProposalDeclined},
	ProposalAccepted: {},
	ProposalDeclined: {},
}

func (s ProposalStatus) Valid() bool {
	_, ok := proposalTransitions[s]
	return ok
}

func (s ProposalStatus) CanTransitionTo(next ProposalStatus) bool {
	for _, allowed := range proposalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Proposal struct {
	ID              int64          `json:"id"`
	RequestID       int64          `json:"request_id"`
	CoachID         int64          `json:"coach_id"`
	PricePerSession float64        `json:"price_per_session"`
	SessionCount    int            `json:"session_count"`
	CoverLetter     string         `json:"cover_letter"`
	Status          ProposalStatus `json:"status"`
	DeclineReason   *string        `json:"decline_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
