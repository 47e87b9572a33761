package models

const (
	RoleStudent = "student"
	RoleCoach   = "coach"
	RoleAdmin   = "admin"
)

// Actor is the authenticated caller as supplied by the identity layer.
type Actor struct {
	UserID int64
	Role   string
}

const (
	ContextTypeContract = "contract"
	ContextTypeProposal = "proposal"
)

// WorkflowContext annotates a conversation between a student and a coach
// with the most relevant workflow entity between them.
type WorkflowContext struct {
	Type              string  `json:"type"`
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	Title             string  `json:"title"`
	Amount            float64 `json:"amount"`
	Sessions          int     `json:"sessions"`
	CompletedSessions int     `json:"completed_sessions"`
}
