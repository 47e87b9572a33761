package repository

import (
	"context"

	"github.com/saeid-a/CoachMarketBack/internal/models"
)

type CreateContractInput struct {
	RequestID     int64
	ProposalID    int64
	StudentID     int64
	CoachID       int64
	Rate          float64
	TotalSessions int
	TotalAmount   float64
}

type ContractRepository struct {
	db DBTX
}

func NewContractRepository(db DBTX) *ContractRepository {
	return &ContractRepository{db: db}
}

const contractColumns = `id, request_id, proposal_id, student_id, coach_id, rate, total_sessions, completed_sessions, total_amount, status, cancel_reason, created_at, updated_at`

func scanContract(row rowScanner) (*models.Contract, error) {
	var contract models.Contract
	err := row.Scan(
		&contract.ID,
		&contract.RequestID,
		&contract.ProposalID,
		&contract.StudentID,
		&contract.CoachID,
		&contract.Rate,
		&contract.TotalSessions,
		&contract.CompletedSessions,
		&contract.TotalAmount,
		&contract.Status,
		&contract.CancelReason,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *ContractRepository) Create(ctx context.Context, input CreateContractInput) (*models.Contract, error) {
	query := `
		INSERT INTO contracts (
			request_id, proposal_id, student_id, coach_id, rate,
			total_sessions, completed_sessions, total_amount, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, 'active')
		RETURNING ` + contractColumns

	return scanContract(r.db.QueryRow(
		ctx,
		query,
		input.RequestID,
		input.ProposalID,
		input.StudentID,
		input.CoachID,
		input.Rate,
		input.TotalSessions,
		input.TotalAmount,
	))
}

func (r *ContractRepository) GetByID(ctx context.Context, contractID int64) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	return scanContract(r.db.QueryRow(ctx, query, contractID))
}

func (r *ContractRepository) GetByIDForUpdate(ctx context.Context, contractID int64) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`
	return scanContract(r.db.QueryRow(ctx, query, contractID))
}

func (r *ContractRepository) ListForParticipant(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.Contract, error) {
	actorColumn := "student_id"
	if role == models.RoleCoach {
		actorColumn = "coach_id"
	}

	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE ` + actorColumn + ` = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contracts := make([]models.Contract, 0)
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *contract)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *ContractRepository) UpdateProgress(
	ctx context.Context,
	contractID int64,
	completedSessions int,
	status models.ContractStatus,
) (*models.Contract, error) {
	query := `
		UPDATE contracts
		SET completed_sessions = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + contractColumns
	return scanContract(r.db.QueryRow(ctx, query, contractID, completedSessions, status))
}

func (r *ContractRepository) CancelIfActive(
	ctx context.Context,
	contractID int64,
	reason *string,
) (*models.Contract, error) {
	query := `
		UPDATE contracts
		SET status = 'cancelled', cancel_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING ` + contractColumns
	return scanContract(r.db.QueryRow(ctx, query, contractID, reason))
}

func (r *ContractRepository) LatestBetween(
	ctx context.Context,
	studentID int64,
	coachID int64,
) (*models.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE student_id = $1 AND coach_id = $2
		ORDER BY (status = 'active') DESC, created_at DESC, id DESC
		LIMIT 1
	`
	return scanContract(r.db.QueryRow(ctx, query, studentID, coachID))
}
