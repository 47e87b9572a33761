package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachMarketBack/internal/events"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/repository"
)

const (
	opCancelContract = "cancelContract"
	opGetContext     = "getContext"
)

type eventDispatcher interface {
	Dispatch(events ...events.Event)
}

// WorkflowService is the entry point for callers. Every mutating operation
// runs in one transaction; events are handed to the dispatcher only after
// commit, so a failing publisher can never undo a committed transition.
type WorkflowService struct {
	tx        TxRunner
	requests  *RequestStore
	proposals *ProposalEngine
	factory   *ContractFactory
	sessions  *SessionLifecycle
	events    eventDispatcher
	logger    zerolog.Logger
}

func NewWorkflowService(
	tx TxRunner,
	dispatcher eventDispatcher,
	logger zerolog.Logger,
	sessionMinutes int,
	now func() time.Time,
) *WorkflowService {
	requests := NewRequestStore()
	factory := NewContractFactory(sessionMinutes, logger)
	return &WorkflowService{
		tx:        tx,
		requests:  requests,
		proposals: NewProposalEngine(requests, factory),
		factory:   factory,
		sessions:  NewSessionLifecycle(now),
		events:    dispatcher,
		logger:    logger,
	}
}

func (s *WorkflowService) dispatch(evts []events.Event) {
	if s.events == nil || len(evts) == 0 {
		return
	}
	s.events.Dispatch(evts...)
}

func (s *WorkflowService) logFatal(err error) {
	if errors.Is(err, ErrFatalInvariant) {
		s.logger.Error().Err(err).Msg("workflow transaction rolled back on invariant violation")
	}
}

func requireRole(actor models.Actor, op, entity string, id int64, roles ...string) error {
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return forbiddenError(op, entity, id)
}

// Requests

func (s *WorkflowService) CreateRequest(
	ctx context.Context,
	actor models.Actor,
	input CreateRequestInput,
) (*models.LearningRequest, error) {
	if err := requireRole(actor, opCreateRequest, EntityRequest, 0, models.RoleStudent); err != nil {
		return nil, err
	}

	var request *models.LearningRequest
	err := s.tx.InTx(ctx, func(repos Repos) error {
		var err error
		request, err = s.requests.Create(ctx, repos, actor.UserID, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatch([]events.Event{events.New(events.RequestCreated, request.ID, actor.UserID, request, actor.UserID)})
	return request, nil
}

func (s *WorkflowService) GetRequest(
	ctx context.Context,
	requestID int64,
) (*models.LearningRequest, error) {
	var request *models.LearningRequest
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		var err error
		request, err = s.requests.Get(ctx, repos, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *WorkflowService) ListOpenRequests(
	ctx context.Context,
	page int,
	limit int,
) ([]models.LearningRequest, int, error) {
	var (
		requests []models.LearningRequest
		total    int
	)
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		var err error
		requests, total, err = s.requests.ListOpen(ctx, repos, page, limit)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

func (s *WorkflowService) ListMyRequests(
	ctx context.Context,
	actor models.Actor,
) ([]models.LearningRequest, error) {
	if err := requireRole(actor, "listRequests", EntityRequest, 0, models.RoleStudent); err != nil {
		return nil, err
	}
	var requests []models.LearningRequest
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		var err error
		requests, err = repos.Requests.ListByStudent(ctx, actor.UserID)
		return err
	})
	return requests, err
}

// DeactivateRequest lets the owning student withdraw a request, or an
// administrator close it. Repeated calls are no-ops.
func (s *WorkflowService) DeactivateRequest(
	ctx context.Context,
	actor models.Actor,
	requestID int64,
) (*models.LearningRequest, error) {
	var (
		request *models.LearningRequest
		changed bool
		evts    []events.Event
	)
	err := s.tx.InTx(ctx, func(repos Repos) error {
		current, err := s.requests.getForUpdate(ctx, repos, requestID, opDeactivate)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin && !(actor.Role == models.RoleStudent && current.StudentID == actor.UserID) {
			return forbiddenError(opDeactivate, EntityRequest, requestID)
		}

		request, changed, err = s.requests.Deactivate(ctx, repos, requestID)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		declined, err := repos.Proposals.DeclinePendingForRequest(ctx, requestID, 0, "request withdrawn")
		if err != nil {
			return err
		}
		evts = append(evts, events.New(events.RequestDeactivated, requestID, actor.UserID, request, request.StudentID))
		for i := range declined {
			evts = append(evts, events.New(events.ProposalDeclined, declined[i].ID, actor.UserID, declined[i], declined[i].CoachID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(evts)
	return request, nil
}

// Proposals

func (s *WorkflowService) SubmitProposal(
	ctx context.Context,
	actor models.Actor,
	input SubmitProposalInput,
) (*models.Proposal, error) {
	if err := requireRole(actor, opSubmit, EntityProposal, 0, models.RoleCoach); err != nil {
		return nil, err
	}

	var (
		proposal  *models.Proposal
		studentID int64
	)
	err := s.tx.InTx(ctx, func(repos Repos) error {
		var err error
		proposal, err = s.proposals.Submit(ctx, repos, actor.UserID, input)
		if err != nil {
			return err
		}
		request, err := s.requests.Get(ctx, repos, proposal.RequestID)
		if err != nil {
			return err
		}
		studentID = request.StudentID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatch([]events.Event{events.New(events.ProposalSubmitted, proposal.ID, actor.UserID, proposal, studentID, actor.UserID)})
	return proposal, nil
}

func (s *WorkflowService) GetProposal(
	ctx context.Context,
	actor models.Actor,
	proposalID int64,
) (*models.Proposal, error) {
	var proposal *models.Proposal
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		var err error
		proposal, err = repos.Proposals.GetByID(ctx, proposalID)
		if err != nil {
			return lookupError(err, "getProposal", EntityProposal, proposalID)
		}
		if actor.Role == models.RoleAdmin || proposal.CoachID == actor.UserID {
			return nil
		}
		request, err := s.requests.Get(ctx, repos, proposal.RequestID)
		if err != nil {
			return err
		}
		if request.StudentID != actor.UserID {
			return forbiddenError("getProposal", EntityProposal, proposalID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

// ListRequestProposals returns every proposal to the request owner and
// administrators; a coach only sees their own.
func (s *WorkflowService) ListRequestProposals(
	ctx context.Context,
	actor models.Actor,
	requestID int64,
) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		request, err := s.requests.Get(ctx, repos, requestID)
		if err != nil {
			return err
		}
		all, err := repos.Proposals.ListByRequest(ctx, requestID)
		if err != nil {
			return err
		}

		switch {
		case actor.Role == models.RoleAdmin, actor.Role == models.RoleStudent && request.StudentID == actor.UserID:
			proposals = all
		case actor.Role == models.RoleCoach:
			proposals = make([]models.Proposal, 0, 1)
			for _, proposal := range all {
				if proposal.CoachID == actor.UserID {
					proposals = append(proposals, proposal)
				}
			}
		default:
			return forbiddenError("listProposals", EntityRequest, requestID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

func (s *WorkflowService) ListMyProposals(
	ctx context.Context,
	actor models.Actor,
) ([]models.Proposal, error) {
	if err := requireRole(actor, "listProposals", EntityProposal, 0, models.RoleCoach); err != nil {
		return nil, err
	}
	var proposals []models.Proposal
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		var err error
		proposals, err = repos.Proposals.ListByCoach(ctx, actor.UserID)
		return err
	})
	return proposals, err
}

func (s *WorkflowService) AcceptProposal(
	ctx context.Context,
	actor models.Actor,
	proposalID int64,
) (*AcceptResult, error) {
	if err := requireRole(actor, opAccept, EntityProposal, proposalID, models.RoleStudent); err != nil {
		return nil, err
	}

	var result *AcceptResult
	err := s.tx.InTx(ctx, func(repos Repos) error {
		var err error
		result, err = s.proposals.Accept(ctx, repos, actor.UserID, proposalID)
		return err
	})
	if err != nil {
		s.logFatal(err)
		return nil, err
	}

	contract := result.Contract
	evts := []events.Event{
		events.New(events.ProposalAccepted, result.Proposal.ID, actor.UserID, result.Proposal, result.Proposal.CoachID, actor.UserID),
		events.New(events.ContractCreated, contract.ID, actor.UserID, contract, contract.StudentID, contract.CoachID),
	}
	for i := range result.Declined {
		declined := result.Declined[i]
		evts = append(evts, events.New(events.ProposalDeclined, declined.ID, actor.UserID, declined, declined.CoachID))
	}
	s.dispatch(evts)

	return result, nil
}

func (s *WorkflowService) DeclineProposal(
	ctx context.Context,
	actor models.Actor,
	proposalID int64,
	reason string,
) (*models.Proposal, error) {
	if err := requireRole(actor, opDecline, EntityProposal, proposalID, models.RoleStudent); err != nil {
		return nil, err
	}

	var proposal *models.Proposal
	err := s.tx.InTx(ctx, func(repos Repos) error {
		var err error
		proposal, err = s.proposals.Decline(ctx, repos, actor.UserID, proposalID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatch([]events.Event{events.New(events.ProposalDeclined, proposal.ID, actor.UserID, proposal, proposal.CoachID)})
	return proposal, nil
}

// Contracts

func canReadContract(actor models.Actor, contract *models.Contract) bool {
	return actor.Role == models.RoleAdmin || contract.IsParticipant(actor.UserID)
}

func (s *WorkflowService) GetContract(
	ctx context.Context,
	actor models.Actor,
	contractID int64,
) (*models.ContractDetail, error) {
	var detail *models.ContractDetail
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		contract, err := repos.Contracts.GetByID(ctx, contractID)
		if err != nil {
			return lookupError(err, "getContract", EntityContract, contractID)
		}
		if !canReadContract(actor, contract) {
			return forbiddenError("getContract", EntityContract, contractID)
		}
		sessions, err := repos.Sessions.ListByContract(ctx, contractID)
		if err != nil {
			return err
		}
		detail = &models.ContractDetail{Contract: *contract, Sessions: sessions}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *WorkflowService) ListContracts(
	ctx context.Context,
	actor models.Actor,
) ([]models.Contract, error) {
	if err := requireRole(actor, "listContracts", EntityContract, 0, models.RoleStudent, models.RoleCoach); err != nil {
		return nil, err
	}
	var contracts []models.Contract
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		var err error
		contracts, err = repos.Contracts.ListForParticipant(ctx, actor.UserID, actor.Role)
		return err
	})
	return contracts, err
}

// CancelContract is an administrative action. Once cancelled, no session of
// the contract may transition again.
func (s *WorkflowService) CancelContract(
	ctx context.Context,
	actor models.Actor,
	contractID int64,
	reason string,
) (*models.Contract, error) {
	if err := requireRole(actor, opCancelContract, EntityContract, contractID, models.RoleAdmin); err != nil {
		return nil, err
	}

	var contract *models.Contract
	err := s.tx.InTx(ctx, func(repos Repos) error {
		current, err := repos.Contracts.GetByIDForUpdate(ctx, contractID)
		if err != nil {
			return lookupError(err, opCancelContract, EntityContract, contractID)
		}
		if !current.Status.CanTransitionTo(models.ContractCancelled) {
			return invalidStateError(opCancelContract, EntityContract, contractID, string(current.Status), "")
		}

		var cancelReason *string
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			cancelReason = &trimmed
		}
		contract, err = repos.Contracts.CancelIfActive(ctx, contractID, cancelReason)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return invalidStateError(opCancelContract, EntityContract, contractID, string(current.Status), "contract changed concurrently")
			}
			return err
		}
		return repos.Sessions.ClearPendingReschedules(ctx, contractID)
	})
	if err != nil {
		return nil, err
	}

	s.dispatch([]events.Event{
		events.New(events.ContractCancelled, contract.ID, actor.UserID, contract, contract.StudentID, contract.CoachID),
	})
	return contract, nil
}

// Sessions

func sessionDetail(session *models.Session, contract *models.Contract) *models.SessionDetail {
	return &models.SessionDetail{
		Session:   *session,
		StudentID: contract.StudentID,
		CoachID:   contract.CoachID,
	}
}

func (s *WorkflowService) GetSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
) (*models.SessionDetail, error) {
	var detail *models.SessionDetail
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		session, err := repos.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return lookupError(err, "getSession", EntitySession, sessionID)
		}
		contract, err := repos.Contracts.GetByID(ctx, session.ContractID)
		if err != nil {
			return lookupError(err, "getSession", EntityContract, session.ContractID)
		}
		if !canReadContract(actor, contract) {
			return forbiddenError("getSession", EntitySession, sessionID)
		}
		detail = sessionDetail(session, contract)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *WorkflowService) ListSessions(
	ctx context.Context,
	actor models.Actor,
	filter repository.SessionListFilter,
) ([]models.Session, error) {
	if err := requireRole(actor, "listSessions", EntitySession, 0, models.RoleStudent, models.RoleCoach); err != nil {
		return nil, err
	}
	if filter.Status != "" && !models.SessionStatus(filter.Status).Valid() {
		return nil, validationError("listSessions", EntitySession, 0, "unknown session status "+filter.Status)
	}
	switch filter.Timeframe {
	case "", repository.TimeframeUpcoming, repository.TimeframePast, repository.TimeframeUnscheduled:
	default:
		return nil, validationError("listSessions", EntitySession, 0, "unknown timeframe "+filter.Timeframe)
	}

	var sessions []models.Session
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		var err error
		sessions, err = repos.Sessions.List(ctx, repository.SessionListFilter{
			ActorID:    actor.UserID,
			Role:       actor.Role,
			ContractID: filter.ContractID,
			Status:     filter.Status,
			Timeframe:  filter.Timeframe,
		})
		return err
	})
	return sessions, err
}

type sessionMutation func(repos Repos, contract *models.Contract, session *models.Session) (*models.Session, error)

// mutateSession locks the contract and then the session, checks that the
// actor is one of the pair and that the contract still allows transitions,
// and applies fn within the same transaction.
func (s *WorkflowService) mutateSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	op string,
	fn sessionMutation,
) (*models.Session, *models.Contract, error) {
	var (
		updated  *models.Session
		contract *models.Contract
	)
	err := s.tx.InTx(ctx, func(repos Repos) error {
		session, err := repos.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			return lookupError(err, op, EntitySession, sessionID)
		}
		contract, err = repos.Contracts.GetByIDForUpdate(ctx, session.ContractID)
		if err != nil {
			return lookupError(err, op, EntityContract, session.ContractID)
		}
		if !contract.IsParticipant(actor.UserID) {
			return forbiddenError(op, EntitySession, sessionID)
		}
		if contract.Status != models.ContractActive {
			return invalidStateError(op, EntityContract, contract.ID, string(contract.Status), "contract no longer accepts session changes")
		}

		session, err = repos.Sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return lookupError(err, op, EntitySession, sessionID)
		}

		updated, err = fn(repos, contract, session)
		return err
	})
	if err != nil {
		s.logFatal(err)
		return nil, nil, err
	}
	return updated, contract, nil
}

func (s *WorkflowService) ScheduleSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	input ScheduleInput,
) (*models.SessionDetail, error) {
	var approvedReschedule bool
	session, contract, err := s.mutateSession(ctx, actor, sessionID, opSchedule,
		func(repos Repos, contract *models.Contract, session *models.Session) (*models.Session, error) {
			// Rescheduling over one's own request withdraws it rather than approving it.
			approvedReschedule = session.RescheduleRequested &&
				(session.RescheduleRequestedBy == nil || *session.RescheduleRequestedBy != actor.UserID)
			return s.sessions.Schedule(ctx, repos, contract.CoachID, session, input)
		})
	if err != nil {
		return nil, err
	}

	detail := sessionDetail(session, contract)
	payload := map[string]any{"session": detail, "approved_reschedule": approvedReschedule}
	s.dispatch([]events.Event{
		events.New(events.SessionScheduled, session.ID, actor.UserID, payload, contract.StudentID, contract.CoachID),
	})
	return detail, nil
}

func (s *WorkflowService) RequestReschedule(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	input RescheduleInput,
) (*models.SessionDetail, error) {
	session, contract, err := s.mutateSession(ctx, actor, sessionID, opRequestReschedule,
		func(repos Repos, _ *models.Contract, session *models.Session) (*models.Session, error) {
			return s.sessions.RequestReschedule(ctx, repos, actor.UserID, session, input)
		})
	if err != nil {
		return nil, err
	}

	detail := sessionDetail(session, contract)
	s.dispatch([]events.Event{
		events.New(events.RescheduleRequested, session.ID, actor.UserID, detail, contract.StudentID, contract.CoachID),
	})
	return detail, nil
}

func (s *WorkflowService) ClearRescheduleRequest(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
) (*models.SessionDetail, error) {
	var cleared bool
	session, contract, err := s.mutateSession(ctx, actor, sessionID, opClearRescheduleRequest,
		func(repos Repos, _ *models.Contract, session *models.Session) (*models.Session, error) {
			updated, changed, err := s.sessions.ClearRescheduleRequest(ctx, repos, session)
			cleared = changed
			return updated, err
		})
	if err != nil {
		return nil, err
	}

	detail := sessionDetail(session, contract)
	if cleared {
		s.dispatch([]events.Event{
			events.New(events.RescheduleCleared, session.ID, actor.UserID, detail, contract.StudentID, contract.CoachID),
		})
	}
	return detail, nil
}

func (s *WorkflowService) AttachMeetingLink(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	link string,
) (*models.SessionDetail, error) {
	session, contract, err := s.mutateSession(ctx, actor, sessionID, opAttachMeetingLink,
		func(repos Repos, _ *models.Contract, session *models.Session) (*models.Session, error) {
			return s.sessions.AttachMeetingLink(ctx, repos, session, link)
		})
	if err != nil {
		return nil, err
	}

	detail := sessionDetail(session, contract)
	s.dispatch([]events.Event{
		events.New(events.MeetingLinkAttached, session.ID, actor.UserID, detail, contract.StudentID, contract.CoachID),
	})
	return detail, nil
}

func (s *WorkflowService) StartSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, contract, err := s.mutateSession(ctx, actor, sessionID, opStart,
		func(repos Repos, _ *models.Contract, session *models.Session) (*models.Session, error) {
			return s.sessions.Start(ctx, repos, session)
		})
	if err != nil {
		return nil, err
	}

	detail := sessionDetail(session, contract)
	s.dispatch([]events.Event{
		events.New(events.SessionStarted, session.ID, actor.UserID, detail, contract.StudentID, contract.CoachID),
	})
	return detail, nil
}

type CompleteResult struct {
	Session  *models.SessionDetail `json:"session"`
	Contract *models.Contract      `json:"contract"`
}

// CompleteSession completes the session and recomputes the contract counters
// in the same transaction.
func (s *WorkflowService) CompleteSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
) (*CompleteResult, error) {
	var refreshed *models.Contract
	session, _, err := s.mutateSession(ctx, actor, sessionID, opComplete,
		func(repos Repos, contract *models.Contract, session *models.Session) (*models.Session, error) {
			completed, err := s.sessions.Complete(ctx, repos, session)
			if err != nil {
				return nil, err
			}
			refreshed, err = s.recomputeContract(ctx, repos, contract)
			if err != nil {
				return nil, err
			}
			return completed, nil
		})
	if err != nil {
		return nil, err
	}

	detail := sessionDetail(session, refreshed)
	evts := []events.Event{
		events.New(events.SessionCompleted, session.ID, actor.UserID, detail, refreshed.StudentID, refreshed.CoachID),
	}
	if refreshed.Status == models.ContractCompleted {
		evts = append(evts, events.New(events.ContractCompleted, refreshed.ID, actor.UserID, refreshed, refreshed.StudentID, refreshed.CoachID))
	}
	s.dispatch(evts)

	return &CompleteResult{Session: detail, Contract: refreshed}, nil
}

// recomputeContract derives completed_sessions from the session rows rather
// than incrementing, so the cached column cannot drift.
func (s *WorkflowService) recomputeContract(
	ctx context.Context,
	repos Repos,
	contract *models.Contract,
) (*models.Contract, error) {
	completed, err := repos.Sessions.CountCompleted(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	if completed > contract.TotalSessions {
		return nil, fatalInvariantError(opComplete, EntityContract, contract.ID,
			fmt.Sprintf("%d completed sessions exceed total of %d", completed, contract.TotalSessions))
	}

	status := contract.Status
	if completed == contract.TotalSessions {
		if !status.CanTransitionTo(models.ContractCompleted) {
			return nil, invalidStateError(opComplete, EntityContract, contract.ID, string(status), "")
		}
		status = models.ContractCompleted
	}

	return repos.Contracts.UpdateProgress(ctx, contract.ID, completed, status)
}

// Messaging context

// GetContext returns the workflow entity that best describes the relationship
// between the caller and counterpartID: their latest contract, otherwise their
// latest proposal.
func (s *WorkflowService) GetContext(
	ctx context.Context,
	actor models.Actor,
	counterpartID int64,
) (*models.WorkflowContext, error) {
	var studentID, coachID int64
	switch actor.Role {
	case models.RoleStudent:
		studentID, coachID = actor.UserID, counterpartID
	case models.RoleCoach:
		studentID, coachID = counterpartID, actor.UserID
	default:
		return nil, forbiddenError(opGetContext, "context", counterpartID)
	}
	if counterpartID <= 0 || counterpartID == actor.UserID {
		return nil, validationError(opGetContext, "context", counterpartID, "counterpart_id must reference another user")
	}

	var result *models.WorkflowContext
	err := s.tx.ReadOnly(ctx, func(repos Repos) error {
		contract, err := repos.Contracts.LatestBetween(ctx, studentID, coachID)
		if err == nil {
			request, err := s.requests.Get(ctx, repos, contract.RequestID)
			if err != nil {
				return err
			}
			result = &models.WorkflowContext{
				Type:              models.ContextTypeContract,
				ID:                contract.ID,
				Status:            string(contract.Status),
				Title:             request.Title,
				Amount:            contract.TotalAmount,
				Sessions:          contract.TotalSessions,
				CompletedSessions: contract.CompletedSessions,
			}
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		proposal, err := repos.Proposals.LatestBetween(ctx, studentID, coachID)
		if err != nil {
			return lookupError(err, opGetContext, "context", counterpartID)
		}
		request, err := s.requests.Get(ctx, repos, proposal.RequestID)
		if err != nil {
			return err
		}
		result = &models.WorkflowContext{
			Type:     models.ContextTypeProposal,
			ID:       proposal.ID,
			Status:   string(proposal.Status),
			Title:    request.Title,
			Amount:   roundMoney(proposal.PricePerSession * float64(proposal.SessionCount)),
			Sessions: proposal.SessionCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
