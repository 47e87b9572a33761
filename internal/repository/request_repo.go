package repository

import (
	"context"

	"github.com/saeid-a/CoachMarketBack/internal/models"
)

type CreateRequestInput struct {
	StudentID      int64
	Title          string
	Description    string
	Budget         *float64
	SessionsNeeded int
}

type RequestRepository struct {
	db DBTX
}

func NewRequestRepository(db DBTX) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, student_id, title, description, budget, sessions_needed, is_active, created_at, updated_at`

func scanRequest(row rowScanner) (*models.LearningRequest, error) {
	var request models.LearningRequest
	err := row.Scan(
		&request.ID,
		&request.StudentID,
		&request.Title,
		&request.Description,
		&request.Budget,
		&request.SessionsNeeded,
		&request.IsActive,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *RequestRepository) Create(
	ctx context.Context,
	input CreateRequestInput,
) (*models.LearningRequest, error) {
	query := `
		INSERT INTO learning_requests (student_id, title, description, budget, sessions_needed, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING ` + requestColumns

	return scanRequest(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.Title,
		input.Description,
		input.Budget,
		input.SessionsNeeded,
	))
}

func (r *RequestRepository) GetByID(ctx context.Context, requestID int64) (*models.LearningRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM learning_requests WHERE id = $1`
	return scanRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *RequestRepository) GetByIDForUpdate(
	ctx context.Context,
	requestID int64,
) (*models.LearningRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM learning_requests WHERE id = $1 FOR UPDATE`
	return scanRequest(r.db.QueryRow(ctx, query, requestID))
}

// DeactivateIfActive flips is_active only when it is still true; pgx.ErrNoRows
// means the request is missing or was already inactive.
func (r *RequestRepository) DeactivateIfActive(
	ctx context.Context,
	requestID int64,
) (*models.LearningRequest, error) {
	query := `
		UPDATE learning_requests
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING ` + requestColumns
	return scanRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *RequestRepository) ListActive(
	ctx context.Context,
	limit int,
	offset int,
) ([]models.LearningRequest, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM learning_requests WHERE is_active`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + requestColumns + `
		FROM learning_requests
		WHERE is_active
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests := make([]models.LearningRequest, 0)
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *RequestRepository) ListByStudent(
	ctx context.Context,
	studentID int64,
) ([]models.LearningRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM learning_requests
		WHERE student_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]models.LearningRequest, 0)
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
