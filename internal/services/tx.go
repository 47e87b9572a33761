package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/repository"
)

type requestRepository interface {
	Create(ctx context.Context, input repository.CreateRequestInput) (*models.LearningRequest, error)
	GetByID(ctx context.Context, requestID int64) (*models.LearningRequest, error)
	GetByIDForUpdate(ctx context.Context, requestID int64) (*models.LearningRequest, error)
	DeactivateIfActive(ctx context.Context, requestID int64) (*models.LearningRequest, error)
	ListActive(ctx context.Context, limit int, offset int) ([]models.LearningRequest, int, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.LearningRequest, error)
}

type proposalRepository interface {
	Create(ctx context.Context, input repository.CreateProposalInput) (*models.Proposal, error)
	GetByID(ctx context.Context, proposalID int64) (*models.Proposal, error)
	GetByIDForUpdate(ctx context.Context, proposalID int64) (*models.Proposal, error)
	ListByRequest(ctx context.Context, requestID int64) ([]models.Proposal, error)
	ListByCoach(ctx context.Context, coachID int64) ([]models.Proposal, error)
	HasOpenForCoach(ctx context.Context, requestID int64, coachID int64) (bool, error)
	UpdateStatusIfCurrent(
		ctx context.Context,
		proposalID int64,
		currentStatus models.ProposalStatus,
		nextStatus models.ProposalStatus,
		declineReason *string,
	) (*models.Proposal, error)
	DeclinePendingForRequest(ctx context.Context, requestID int64, exceptProposalID int64, reason string) ([]models.Proposal, error)
	LatestBetween(ctx context.Context, studentID int64, coachID int64) (*models.Proposal, error)
}

type contractRepository interface {
	Create(ctx context.Context, input repository.CreateContractInput) (*models.Contract, error)
	GetByID(ctx context.Context, contractID int64) (*models.Contract, error)
	GetByIDForUpdate(ctx context.Context, contractID int64) (*models.Contract, error)
	ListForParticipant(ctx context.Context, actorID int64, role string) ([]models.Contract, error)
	UpdateProgress(ctx context.Context, contractID int64, completedSessions int, status models.ContractStatus) (*models.Contract, error)
	CancelIfActive(ctx context.Context, contractID int64, reason *string) (*models.Contract, error)
	LatestBetween(ctx context.Context, studentID int64, coachID int64) (*models.Contract, error)
}

type sessionRepository interface {
	CreateForContract(ctx context.Context, contractID int64, count int, durationMinutes int) ([]models.Session, error)
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	GetByIDForUpdate(ctx context.Context, sessionID int64) (*models.Session, error)
	ListByContract(ctx context.Context, contractID int64) ([]models.Session, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, error)
	UpdateSchedule(ctx context.Context, sessionID int64, scheduledAt time.Time, durationMinutes int) (*models.Session, error)
	MarkRescheduleRequested(ctx context.Context, sessionID int64, input repository.RescheduleRequestInput) (*models.Session, error)
	ClearRescheduleRequest(ctx context.Context, sessionID int64) (*models.Session, error)
	ClearPendingReschedules(ctx context.Context, contractID int64) error
	SetMeetingLink(ctx context.Context, sessionID int64, link string) (*models.Session, error)
	UpdateStatusIfCurrent(
		ctx context.Context,
		sessionID int64,
		currentStatus models.SessionStatus,
		nextStatus models.SessionStatus,
	) (*models.Session, error)
	CountCompleted(ctx context.Context, contractID int64) (int, error)
	LockCoachCalendar(ctx context.Context, coachID int64) error
	HasCoachConflict(
		ctx context.Context,
		coachID int64,
		requestedTime time.Time,
		durationMinutes int,
		excludedSessionID int64,
	) (bool, error)
}

// Repos is the set of repositories bound to one transaction.
type Repos struct {
	Requests  requestRepository
	Proposals proposalRepository
	Contracts contractRepository
	Sessions  sessionRepository
}

// TxRunner scopes a unit of work. InTx commits only when fn returns nil;
// ReadOnly gives fn a consistent point-in-time view.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repos Repos) error) error
	ReadOnly(ctx context.Context, fn func(repos Repos) error) error
}

type PgTxRunner struct {
	db *pgxpool.Pool
}

func NewPgTxRunner(db *pgxpool.Pool) *PgTxRunner {
	return &PgTxRunner{db: db}
}

func reposFor(db repository.DBTX) Repos {
	return Repos{
		Requests:  repository.NewRequestRepository(db),
		Proposals: repository.NewProposalRepository(db),
		Contracts: repository.NewContractRepository(db),
		Sessions:  repository.NewSessionRepository(db),
	}
}

func (r *PgTxRunner) InTx(ctx context.Context, fn func(repos Repos) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (r *PgTxRunner) ReadOnly(ctx context.Context, fn func(repos Repos) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (r *PgTxRunner) run(ctx context.Context, opts pgx.TxOptions, fn func(repos Repos) error) error {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(reposFor(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
