package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/repository"
)

const (
	opSubmit  = "submit"
	opAccept  = "accept"
	opDecline = "decline"
)

type ProposalEngine struct {
	requests *RequestStore
	factory  *ContractFactory
}

func NewProposalEngine(requests *RequestStore, factory *ContractFactory) *ProposalEngine {
	return &ProposalEngine{requests: requests, factory: factory}
}

type SubmitProposalInput struct {
	RequestID       int64
	PricePerSession float64
	SessionCount    int
	CoverLetter     string
}

type AcceptResult struct {
	Proposal *models.Proposal
	Request  *models.LearningRequest
	Contract *models.ContractDetail
	Declined []models.Proposal
}

func (e *ProposalEngine) Submit(
	ctx context.Context,
	repos Repos,
	coachID int64,
	input SubmitProposalInput,
) (*models.Proposal, error) {
	if input.PricePerSession <= 0 {
		return nil, validationError(opSubmit, EntityProposal, 0, "price_per_session must be greater than 0")
	}
	if input.SessionCount < 1 {
		return nil, validationError(opSubmit, EntityProposal, 0, "session_count must be at least 1")
	}

	request, err := e.requests.getForUpdate(ctx, repos, input.RequestID, opSubmit)
	if err != nil {
		return nil, err
	}
	if request.StudentID == coachID {
		return nil, forbiddenError(opSubmit, EntityRequest, request.ID)
	}
	if !request.IsActive {
		return nil, invalidStateError(opSubmit, EntityRequest, request.ID, request.ActivityStatus(), "request is no longer accepting proposals")
	}

	exists, err := repos.Proposals.HasOpenForCoach(ctx, request.ID, coachID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflictError(opSubmit, EntityRequest, request.ID, "coach already has an open proposal on this request")
	}

	proposal, err := repos.Proposals.Create(ctx, repository.CreateProposalInput{
		RequestID:       request.ID,
		CoachID:         coachID,
		PricePerSession: roundMoney(input.PricePerSession),
		SessionCount:    input.SessionCount,
		CoverLetter:     strings.TrimSpace(input.CoverLetter),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictError(opSubmit, EntityRequest, request.ID, "coach already has an open proposal on this request")
		}
		return nil, err
	}
	return proposal, nil
}

// Accept runs inside the caller's transaction. The request row is locked
// before the proposal so concurrent accepts on sibling proposals serialize on
// the request and the loser sees it inactive.
func (e *ProposalEngine) Accept(
	ctx context.Context,
	repos Repos,
	studentID int64,
	proposalID int64,
) (*AcceptResult, error) {
	proposal, err := repos.Proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, lookupError(err, opAccept, EntityProposal, proposalID)
	}

	request, err := e.requests.getForUpdate(ctx, repos, proposal.RequestID, opAccept)
	if err != nil {
		return nil, err
	}
	if request.StudentID != studentID {
		return nil, forbiddenError(opAccept, EntityProposal, proposalID)
	}

	proposal, err = repos.Proposals.GetByIDForUpdate(ctx, proposalID)
	if err != nil {
		return nil, lookupError(err, opAccept, EntityProposal, proposalID)
	}
	if !request.IsActive {
		return nil, invalidStateError(opAccept, EntityRequest, request.ID, request.ActivityStatus(), "request already fulfilled")
	}
	if !proposal.Status.CanTransitionTo(models.ProposalAccepted) {
		return nil, invalidStateError(opAccept, EntityProposal, proposalID, string(proposal.Status), "")
	}

	accepted, err := repos.Proposals.UpdateStatusIfCurrent(
		ctx,
		proposalID,
		models.ProposalPending,
		models.ProposalAccepted,
		nil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidStateError(opAccept, EntityProposal, proposalID, string(proposal.Status), "proposal changed concurrently")
		}
		if isUniqueViolation(err) {
			return nil, invalidStateError(opAccept, EntityRequest, request.ID, "inactive", "request already fulfilled")
		}
		return nil, err
	}

	deactivated, changed, err := e.requests.Deactivate(ctx, repos, request.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, invalidStateError(opAccept, EntityRequest, request.ID, deactivated.ActivityStatus(), "request already fulfilled")
	}

	contract, err := e.factory.CreateFromProposal(ctx, repos, accepted, deactivated)
	if err != nil {
		return nil, err
	}

	declined, err := repos.Proposals.DeclinePendingForRequest(
		ctx,
		request.ID,
		accepted.ID,
		models.DeclineReasonRequestFulfilled,
	)
	if err != nil {
		return nil, err
	}

	return &AcceptResult{
		Proposal: accepted,
		Request:  deactivated,
		Contract: contract,
		Declined: declined,
	}, nil
}

func (e *ProposalEngine) Decline(
	ctx context.Context,
	repos Repos,
	studentID int64,
	proposalID int64,
	reason string,
) (*models.Proposal, error) {
	proposal, err := repos.Proposals.GetByIDForUpdate(ctx, proposalID)
	if err != nil {
		return nil, lookupError(err, opDecline, EntityProposal, proposalID)
	}

	request, err := e.requests.Get(ctx, repos, proposal.RequestID)
	if err != nil {
		return nil, err
	}
	if request.StudentID != studentID {
		return nil, forbiddenError(opDecline, EntityProposal, proposalID)
	}
	if !proposal.Status.CanTransitionTo(models.ProposalDeclined) {
		return nil, invalidStateError(opDecline, EntityProposal, proposalID, string(proposal.Status), "")
	}

	var declineReason *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		declineReason = &trimmed
	}

	declined, err := repos.Proposals.UpdateStatusIfCurrent(
		ctx,
		proposalID,
		models.ProposalPending,
		models.ProposalDeclined,
		declineReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidStateError(opDecline, EntityProposal, proposalID, string(proposal.Status), "proposal changed concurrently")
		}
		return nil, err
	}
	return declined, nil
}
