package repository

import (
	"context"

	"github.com/saeid-a/CoachMarketBack/internal/models"
)

type CreateProposalInput struct {
	RequestID       int64
	CoachID         int64
	PricePerSession float64
	SessionCount    int
	CoverLetter     string
}

type ProposalRepository struct {
	db DBTX
}

func NewProposalRepository(db DBTX) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, request_id, coach_id, price_per_session, session_count, cover_letter, status, decline_reason, created_at, updated_at`

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var proposal models.Proposal
	err := row.Scan(
		&proposal.ID,
		&proposal.RequestID,
		&proposal.CoachID,
		&proposal.PricePerSession,
		&proposal.SessionCount,
		&proposal.CoverLetter,
		&proposal.Status,
		&proposal.DeclineReason,
		&proposal.CreatedAt,
		&proposal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *ProposalRepository) queryList(ctx context.Context, query string, args ...any) ([]models.Proposal, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	proposals := make([]models.Proposal, 0)
	for rows.Next() {
		proposal, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *proposal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return proposals, nil
}

func (r *ProposalRepository) Create(ctx context.Context, input CreateProposalInput) (*models.Proposal, error) {
	query := `
		INSERT INTO proposals (request_id, coach_id, price_per_session, session_count, cover_letter, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING ` + proposalColumns

	return scanProposal(r.db.QueryRow(
		ctx,
		query,
		input.RequestID,
		input.CoachID,
		input.PricePerSession,
		input.SessionCount,
		input.CoverLetter,
	))
}

func (r *ProposalRepository) GetByID(ctx context.Context, proposalID int64) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	return scanProposal(r.db.QueryRow(ctx, query, proposalID))
}

func (r *ProposalRepository) GetByIDForUpdate(ctx context.Context, proposalID int64) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1 FOR UPDATE`
	return scanProposal(r.db.QueryRow(ctx, query, proposalID))
}

func (r *ProposalRepository) ListByRequest(ctx context.Context, requestID int64) ([]models.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.queryList(ctx, query, requestID)
}

func (r *ProposalRepository) ListByCoach(ctx context.Context, coachID int64) ([]models.Proposal, error) {
	query := `
		SELECT ` + proposalColumns + `
		FROM proposals
		WHERE coach_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.queryList(ctx, query, coachID)
}

func (r *ProposalRepository) HasOpenForCoach(
	ctx context.Context,
	requestID int64,
	coachID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM proposals
			WHERE request_id = $1
			  AND coach_id = $2
			  AND status <> 'declined'
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, requestID, coachID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ProposalRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	proposalID int64,
	currentStatus models.ProposalStatus,
	nextStatus models.ProposalStatus,
	declineReason *string,
) (*models.Proposal, error) {
	query := `
		UPDATE proposals
		SET status = $3, decline_reason = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + proposalColumns
	return scanProposal(r.db.QueryRow(ctx, query, proposalID, currentStatus, nextStatus, declineReason))
}

func (r *ProposalRepository) DeclinePendingForRequest(
	ctx context.Context,
	requestID int64,
	exceptProposalID int64,
	reason string,
) ([]models.Proposal, error) {
	query := `
		UPDATE proposals
		SET status = 'declined', decline_reason = $3, updated_at = NOW()
		WHERE request_id = $1 AND id <> $2 AND status = 'pending'
		RETURNING ` + proposalColumns
	return r.queryList(ctx, query, requestID, exceptProposalID, reason)
}

// LatestBetween returns the newest proposal a coach made on any of the
// student's requests, preferring non-declined ones.
func (r *ProposalRepository) LatestBetween(
	ctx context.Context,
	studentID int64,
	coachID int64,
) (*models.Proposal, error) {
	query := `
		SELECT p.id, p.request_id, p.coach_id, p.price_per_session, p.session_count, p.cover_letter,
		       p.status, p.decline_reason, p.created_at, p.updated_at
		FROM proposals p
		JOIN learning_requests lr ON lr.id = p.request_id
		WHERE lr.student_id = $1 AND p.coach_id = $2
		ORDER BY (p.status = 'declined') ASC, p.created_at DESC, p.id DESC
		LIMIT 1
	`
	return scanProposal(r.db.QueryRow(ctx, query, studentID, coachID))
}
