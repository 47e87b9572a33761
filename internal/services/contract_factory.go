package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/repository"
)

const (
	opCreateFromProposal = "createFromProposal"

	DefaultSessionMinutes = 60
)

// ContractFactory is the only code path that creates sessions.
type ContractFactory struct {
	sessionMinutes int
	logger         zerolog.Logger
}

func NewContractFactory(sessionMinutes int, logger zerolog.Logger) *ContractFactory {
	if sessionMinutes <= 0 {
		sessionMinutes = DefaultSessionMinutes
	}
	return &ContractFactory{sessionMinutes: sessionMinutes, logger: logger}
}

func roundMoney(value float64) float64 {
	return math.Round(value*100) / 100
}

func (f *ContractFactory) CreateFromProposal(
	ctx context.Context,
	repos Repos,
	proposal *models.Proposal,
	request *models.LearningRequest,
) (*models.ContractDetail, error) {
	if proposal.Status != models.ProposalAccepted {
		return nil, f.fail(proposal.ID, fmt.Sprintf("proposal status is %s, want accepted", proposal.Status))
	}
	if request == nil || request.ID != proposal.RequestID {
		return nil, f.fail(proposal.ID, "proposal does not belong to the supplied request")
	}
	if proposal.SessionCount < 1 || proposal.PricePerSession <= 0 {
		return nil, f.fail(proposal.ID, "proposal carries non-positive price or session count")
	}

	contract, err := repos.Contracts.Create(ctx, repository.CreateContractInput{
		RequestID:     request.ID,
		ProposalID:    proposal.ID,
		StudentID:     request.StudentID,
		CoachID:       proposal.CoachID,
		Rate:          proposal.PricePerSession,
		TotalSessions: proposal.SessionCount,
		TotalAmount:   roundMoney(proposal.PricePerSession * float64(proposal.SessionCount)),
	})
	if err != nil {
		return nil, err
	}

	sessions, err := repos.Sessions.CreateForContract(ctx, contract.ID, proposal.SessionCount, f.sessionMinutes)
	if err != nil {
		return nil, err
	}
	if err := verifySessionNumbering(sessions, proposal.SessionCount); err != nil {
		return nil, f.fail(proposal.ID, fmt.Sprintf("contract %d: %v", contract.ID, err))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SessionNumber < sessions[j].SessionNumber
	})
	return &models.ContractDetail{Contract: *contract, Sessions: sessions}, nil
}

// verifySessionNumbering checks that sessions are exactly 1..want with no gaps
// or duplicates.
func verifySessionNumbering(sessions []models.Session, want int) error {
	if len(sessions) != want {
		return fmt.Errorf("created %d sessions, proposal requires %d", len(sessions), want)
	}
	seen := make([]bool, want+1)
	for _, session := range sessions {
		n := session.SessionNumber
		if n < 1 || n > want {
			return fmt.Errorf("session number %d out of range 1..%d", n, want)
		}
		if seen[n] {
			return fmt.Errorf("duplicate session number %d", n)
		}
		if session.Status != models.SessionScheduled || session.ScheduledAt != nil {
			return fmt.Errorf("session %d not created unscheduled", n)
		}
		seen[n] = true
	}
	return nil
}

func (f *ContractFactory) fail(proposalID int64, detail string) error {
	f.logger.Error().
		Str("op", opCreateFromProposal).
		Int64("proposal_id", proposalID).
		Str("detail", detail).
		Msg("contract invariant violated")
	return fatalInvariantError(opCreateFromProposal, EntityProposal, proposalID, detail)
}
