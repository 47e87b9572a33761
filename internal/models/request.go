package models

import "time"

type LearningRequest struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"student_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Budget         *float64  `json:"budget"`
	SessionsNeeded int       `json:"sessions_needed"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ActivityStatus renders is_active the way error payloads report entity state.
func (r *LearningRequest) ActivityStatus() string {
	if r.IsActive {
		return "active"
	}
	return "inactive"
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
