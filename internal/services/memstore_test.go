package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/repository"
)

// memState mirrors the four workflow tables.
type memState struct {
	nextID    int64
	requests  map[int64]models.LearningRequest
	proposals map[int64]models.Proposal
	contracts map[int64]models.Contract
	sessions  map[int64]models.Session
}

func newMemState() *memState {
	return &memState{
		requests:  map[int64]models.LearningRequest{},
		proposals: map[int64]models.Proposal{},
		contracts: map[int64]models.Contract{},
		sessions:  map[int64]models.Session{},
	}
}

func (s *memState) clone() *memState {
	out := newMemState()
	out.nextID = s.nextID
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.proposals {
		out.proposals[k] = v
	}
	for k, v := range s.contracts {
		out.contracts[k] = v
	}
	for k, v := range s.sessions {
		out.sessions[k] = v
	}
	return out
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// memDB is an in-memory TxRunner. Transactions are fully serialized and a
// failed transaction restores the snapshot taken when it began.
type memDB struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time

	// extraSessions makes CreateForContract produce a wrong session count.
	extraSessions int
}

func newMemDB(now func() time.Time) *memDB {
	if now == nil {
		now = time.Now
	}
	return &memDB{state: newMemState(), now: now}
}

func (db *memDB) repos() Repos {
	return Repos{
		Requests:  &memRequests{db: db},
		Proposals: &memProposals{db: db},
		Contracts: &memContracts{db: db},
		Sessions:  &memSessions{db: db},
	}
}

func (db *memDB) InTx(ctx context.Context, fn func(repos Repos) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.state.clone()
	if err := fn(db.repos()); err != nil {
		db.state = snapshot
		return err
	}
	return nil
}

func (db *memDB) ReadOnly(ctx context.Context, fn func(repos Repos) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.state.clone()
	err := fn(db.repos())
	db.state = snapshot
	return err
}

// snapshot returns a copy of the committed state for assertions.
func (db *memDB) snapshot() *memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

type memRequests struct{ db *memDB }

func (r *memRequests) Create(ctx context.Context, input repository.CreateRequestInput) (*models.LearningRequest, error) {
	state := r.db.state
	now := r.db.now().UTC()
	request := models.LearningRequest{
		ID:             state.id(),
		StudentID:      input.StudentID,
		Title:          input.Title,
		Description:    input.Description,
		Budget:         input.Budget,
		SessionsNeeded: input.SessionsNeeded,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	state.requests[request.ID] = request
	return &request, nil
}

func (r *memRequests) GetByID(ctx context.Context, requestID int64) (*models.LearningRequest, error) {
	request, ok := r.db.state.requests[requestID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &request, nil
}

func (r *memRequests) GetByIDForUpdate(ctx context.Context, requestID int64) (*models.LearningRequest, error) {
	return r.GetByID(ctx, requestID)
}

func (r *memRequests) DeactivateIfActive(ctx context.Context, requestID int64) (*models.LearningRequest, error) {
	request, ok := r.db.state.requests[requestID]
	if !ok || !request.IsActive {
		return nil, pgx.ErrNoRows
	}
	request.IsActive = false
	request.UpdatedAt = r.db.now().UTC()
	r.db.state.requests[requestID] = request
	return &request, nil
}

func (r *memRequests) sorted(match func(models.LearningRequest) bool) []models.LearningRequest {
	out := make([]models.LearningRequest, 0)
	for _, request := range r.db.state.requests {
		if match(request) {
			out = append(out, request)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *memRequests) ListActive(ctx context.Context, limit int, offset int) ([]models.LearningRequest, int, error) {
	all := r.sorted(func(request models.LearningRequest) bool { return request.IsActive })
	total := len(all)
	if offset >= total {
		return []models.LearningRequest{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memRequests) ListByStudent(ctx context.Context, studentID int64) ([]models.LearningRequest, error) {
	return r.sorted(func(request models.LearningRequest) bool { return request.StudentID == studentID }), nil
}

type memProposals struct{ db *memDB }

func (r *memProposals) Create(ctx context.Context, input repository.CreateProposalInput) (*models.Proposal, error) {
	state := r.db.state
	for _, existing := range state.proposals {
		if existing.RequestID == input.RequestID && existing.CoachID == input.CoachID && existing.Status != models.ProposalDeclined {
			return nil, uniqueViolation("uq_proposals_one_open_per_coach")
		}
	}
	now := r.db.now().UTC()
	proposal := models.Proposal{
		ID:              state.id(),
		RequestID:       input.RequestID,
		CoachID:         input.CoachID,
		PricePerSession: input.PricePerSession,
		SessionCount:    input.SessionCount,
		CoverLetter:     input.CoverLetter,
		Status:          models.ProposalPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	state.proposals[proposal.ID] = proposal
	return &proposal, nil
}

func (r *memProposals) GetByID(ctx context.Context, proposalID int64) (*models.Proposal, error) {
	proposal, ok := r.db.state.proposals[proposalID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &proposal, nil
}

func (r *memProposals) GetByIDForUpdate(ctx context.Context, proposalID int64) (*models.Proposal, error) {
	return r.GetByID(ctx, proposalID)
}

func (r *memProposals) filter(match func(models.Proposal) bool, desc bool) []models.Proposal {
	out := make([]models.Proposal, 0)
	for _, proposal := range r.db.state.proposals {
		if match(proposal) {
			out = append(out, proposal)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memProposals) ListByRequest(ctx context.Context, requestID int64) ([]models.Proposal, error) {
	return r.filter(func(p models.Proposal) bool { return p.RequestID == requestID }, false), nil
}

func (r *memProposals) ListByCoach(ctx context.Context, coachID int64) ([]models.Proposal, error) {
	return r.filter(func(p models.Proposal) bool { return p.CoachID == coachID }, true), nil
}

func (r *memProposals) HasOpenForCoach(ctx context.Context, requestID int64, coachID int64) (bool, error) {
	open := r.filter(func(p models.Proposal) bool {
		return p.RequestID == requestID && p.CoachID == coachID && p.Status != models.ProposalDeclined
	}, false)
	return len(open) > 0, nil
}

func (r *memProposals) UpdateStatusIfCurrent(
	ctx context.Context,
	proposalID int64,
	currentStatus models.ProposalStatus,
	nextStatus models.ProposalStatus,
	declineReason *string,
) (*models.Proposal, error) {
	state := r.db.state
	proposal, ok := state.proposals[proposalID]
	if !ok || proposal.Status != currentStatus {
		return nil, pgx.ErrNoRows
	}
	if nextStatus == models.ProposalAccepted {
		for _, other := range state.proposals {
			if other.RequestID == proposal.RequestID && other.Status == models.ProposalAccepted {
				return nil, uniqueViolation("uq_proposals_one_accepted_per_request")
			}
		}
	}
	proposal.Status = nextStatus
	proposal.DeclineReason = declineReason
	proposal.UpdatedAt = r.db.now().UTC()
	state.proposals[proposalID] = proposal
	return &proposal, nil
}

func (r *memProposals) DeclinePendingForRequest(
	ctx context.Context,
	requestID int64,
	exceptProposalID int64,
	reason string,
) ([]models.Proposal, error) {
	pending := r.filter(func(p models.Proposal) bool {
		return p.RequestID == requestID && p.ID != exceptProposalID && p.Status == models.ProposalPending
	}, false)
	declined := make([]models.Proposal, 0, len(pending))
	for _, proposal := range pending {
		reason := reason
		proposal.Status = models.ProposalDeclined
		proposal.DeclineReason = &reason
		proposal.UpdatedAt = r.db.now().UTC()
		r.db.state.proposals[proposal.ID] = proposal
		declined = append(declined, proposal)
	}
	return declined, nil
}

func (r *memProposals) LatestBetween(ctx context.Context, studentID int64, coachID int64) (*models.Proposal, error) {
	candidates := r.filter(func(p models.Proposal) bool {
		request, ok := r.db.state.requests[p.RequestID]
		return ok && request.StudentID == studentID && p.CoachID == coachID
	}, true)
	if len(candidates) == 0 {
		return nil, pgx.ErrNoRows
	}
	for _, proposal := range candidates {
		if proposal.Status != models.ProposalDeclined {
			return &proposal, nil
		}
	}
	return &candidates[0], nil
}

type memContracts struct{ db *memDB }

func (r *memContracts) Create(ctx context.Context, input repository.CreateContractInput) (*models.Contract, error) {
	state := r.db.state
	for _, existing := range state.contracts {
		if existing.ProposalID == input.ProposalID || existing.RequestID == input.RequestID {
			return nil, uniqueViolation("contracts_proposal_id_key")
		}
	}
	now := r.db.now().UTC()
	contract := models.Contract{
		ID:            state.id(),
		RequestID:     input.RequestID,
		ProposalID:    input.ProposalID,
		StudentID:     input.StudentID,
		CoachID:       input.CoachID,
		Rate:          input.Rate,
		TotalSessions: input.TotalSessions,
		TotalAmount:   input.TotalAmount,
		Status:        models.ContractActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	state.contracts[contract.ID] = contract
	return &contract, nil
}

func (r *memContracts) GetByID(ctx context.Context, contractID int64) (*models.Contract, error) {
	contract, ok := r.db.state.contracts[contractID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &contract, nil
}

func (r *memContracts) GetByIDForUpdate(ctx context.Context, contractID int64) (*models.Contract, error) {
	return r.GetByID(ctx, contractID)
}

func (r *memContracts) ListForParticipant(ctx context.Context, actorID int64, role string) ([]models.Contract, error) {
	out := make([]models.Contract, 0)
	for _, contract := range r.db.state.contracts {
		owner := contract.StudentID
		if role == models.RoleCoach {
			owner = contract.CoachID
		}
		if owner == actorID {
			out = append(out, contract)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memContracts) UpdateProgress(
	ctx context.Context,
	contractID int64,
	completedSessions int,
	status models.ContractStatus,
) (*models.Contract, error) {
	contract, ok := r.db.state.contracts[contractID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if completedSessions < 0 || completedSessions > contract.TotalSessions {
		return nil, &pgconn.PgError{Code: "23514", ConstraintName: "contracts_completed_sessions_check"}
	}
	contract.CompletedSessions = completedSessions
	contract.Status = status
	contract.UpdatedAt = r.db.now().UTC()
	r.db.state.contracts[contractID] = contract
	return &contract, nil
}

func (r *memContracts) CancelIfActive(ctx context.Context, contractID int64, reason *string) (*models.Contract, error) {
	contract, ok := r.db.state.contracts[contractID]
	if !ok || contract.Status != models.ContractActive {
		return nil, pgx.ErrNoRows
	}
	contract.Status = models.ContractCancelled
	contract.CancelReason = reason
	contract.UpdatedAt = r.db.now().UTC()
	r.db.state.contracts[contractID] = contract
	return &contract, nil
}

func (r *memContracts) LatestBetween(ctx context.Context, studentID int64, coachID int64) (*models.Contract, error) {
	var (
		latest *models.Contract
		found  bool
	)
	for _, contract := range r.db.state.contracts {
		if contract.StudentID != studentID || contract.CoachID != coachID {
			continue
		}
		contract := contract
		if !found {
			latest, found = &contract, true
			continue
		}
		latestActive := latest.Status == models.ContractActive
		active := contract.Status == models.ContractActive
		if (active && !latestActive) || (active == latestActive && contract.ID > latest.ID) {
			latest = &contract
		}
	}
	if !found {
		return nil, pgx.ErrNoRows
	}
	return latest, nil
}

type memSessions struct{ db *memDB }

func (r *memSessions) CreateForContract(
	ctx context.Context,
	contractID int64,
	count int,
	durationMinutes int,
) ([]models.Session, error) {
	state := r.db.state
	now := r.db.now().UTC()
	sessions := make([]models.Session, 0, count)
	for n := 1; n <= count+r.db.extraSessions; n++ {
		session := models.Session{
			ID:              state.id(),
			ContractID:      contractID,
			SessionNumber:   n,
			Status:          models.SessionScheduled,
			DurationMinutes: durationMinutes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		state.sessions[session.ID] = session
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (r *memSessions) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	session, ok := r.db.state.sessions[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &session, nil
}

func (r *memSessions) GetByIDForUpdate(ctx context.Context, sessionID int64) (*models.Session, error) {
	return r.GetByID(ctx, sessionID)
}

func (r *memSessions) ListByContract(ctx context.Context, contractID int64) ([]models.Session, error) {
	out := make([]models.Session, 0)
	for _, session := range r.db.state.sessions {
		if session.ContractID == contractID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionNumber < out[j].SessionNumber })
	return out, nil
}

func (r *memSessions) List(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, error) {
	now := r.db.now()
	out := make([]models.Session, 0)
	for _, session := range r.db.state.sessions {
		contract := r.db.state.contracts[session.ContractID]
		owner := contract.StudentID
		if filter.Role == models.RoleCoach {
			owner = contract.CoachID
		}
		if owner != filter.ActorID {
			continue
		}
		if filter.ContractID > 0 && session.ContractID != filter.ContractID {
			continue
		}
		if filter.Status != "" && string(session.Status) != filter.Status {
			continue
		}
		var end time.Time
		if session.ScheduledAt != nil {
			end = session.ScheduledAt.Add(time.Duration(session.DurationMinutes) * time.Minute)
		}
		switch filter.Timeframe {
		case repository.TimeframeUpcoming:
			if session.ScheduledAt == nil || !end.After(now) {
				continue
			}
		case repository.TimeframePast:
			if session.ScheduledAt == nil || end.After(now) {
				continue
			}
		case repository.TimeframeUnscheduled:
			if session.ScheduledAt != nil {
				continue
			}
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContractID != out[j].ContractID {
			return out[i].ContractID < out[j].ContractID
		}
		return out[i].SessionNumber < out[j].SessionNumber
	})
	return out, nil
}

func clearReschedule(session *models.Session) {
	session.RescheduleRequested = false
	session.RescheduleRequestedAt = nil
	session.RescheduleRequestedBy = nil
	session.NewRequestedDate = nil
	session.RescheduleReason = nil
}

func (r *memSessions) update(sessionID int64, guard func(models.Session) bool, apply func(*models.Session)) (*models.Session, error) {
	session, ok := r.db.state.sessions[sessionID]
	if !ok || (guard != nil && !guard(session)) {
		return nil, pgx.ErrNoRows
	}
	apply(&session)
	session.UpdatedAt = r.db.now().UTC()
	if session.RescheduleRequested && session.Status != models.SessionScheduled {
		return nil, &pgconn.PgError{Code: "23514", ConstraintName: "contract_sessions_reschedule_check"}
	}
	r.db.state.sessions[sessionID] = session
	return &session, nil
}

func (r *memSessions) UpdateSchedule(
	ctx context.Context,
	sessionID int64,
	scheduledAt time.Time,
	durationMinutes int,
) (*models.Session, error) {
	return r.update(sessionID,
		func(s models.Session) bool { return s.Status == models.SessionScheduled },
		func(s *models.Session) {
			s.ScheduledAt = &scheduledAt
			s.DurationMinutes = durationMinutes
			clearReschedule(s)
		})
}

func (r *memSessions) MarkRescheduleRequested(
	ctx context.Context,
	sessionID int64,
	input repository.RescheduleRequestInput,
) (*models.Session, error) {
	now := r.db.now().UTC()
	return r.update(sessionID,
		func(s models.Session) bool { return s.Status == models.SessionScheduled && s.ScheduledAt != nil },
		func(s *models.Session) {
			requestedBy := input.RequestedBy
			newDate := input.NewDate
			s.RescheduleRequested = true
			s.RescheduleRequestedAt = &now
			s.RescheduleRequestedBy = &requestedBy
			s.NewRequestedDate = &newDate
			s.RescheduleReason = input.Reason
		})
}

func (r *memSessions) ClearRescheduleRequest(ctx context.Context, sessionID int64) (*models.Session, error) {
	return r.update(sessionID, nil, clearReschedule)
}

func (r *memSessions) ClearPendingReschedules(ctx context.Context, contractID int64) error {
	for id, session := range r.db.state.sessions {
		if session.ContractID == contractID && session.RescheduleRequested {
			clearReschedule(&session)
			r.db.state.sessions[id] = session
		}
	}
	return nil
}

func (r *memSessions) SetMeetingLink(ctx context.Context, sessionID int64, link string) (*models.Session, error) {
	return r.update(sessionID, nil, func(s *models.Session) { s.MeetingLink = &link })
}

func (r *memSessions) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) (*models.Session, error) {
	now := r.db.now().UTC()
	return r.update(sessionID,
		func(s models.Session) bool { return s.Status == currentStatus },
		func(s *models.Session) {
			s.Status = nextStatus
			switch nextStatus {
			case models.SessionInProgress:
				s.StartedAt = &now
			case models.SessionCompleted:
				s.CompletedAt = &now
			}
		})
}

func (r *memSessions) CountCompleted(ctx context.Context, contractID int64) (int, error) {
	count := 0
	for _, session := range r.db.state.sessions {
		if session.ContractID == contractID && session.Status == models.SessionCompleted {
			count++
		}
	}
	return count, nil
}

func (r *memSessions) LockCoachCalendar(ctx context.Context, coachID int64) error {
	return nil
}

func (r *memSessions) HasCoachConflict(
	ctx context.Context,
	coachID int64,
	requestedTime time.Time,
	durationMinutes int,
	excludedSessionID int64,
) (bool, error) {
	requestedEnd := requestedTime.Add(time.Duration(durationMinutes) * time.Minute)
	for _, session := range r.db.state.sessions {
		contract := r.db.state.contracts[session.ContractID]
		if contract.CoachID != coachID || contract.Status != models.ContractActive {
			continue
		}
		if session.ID == excludedSessionID || session.Status == models.SessionCompleted || session.ScheduledAt == nil {
			continue
		}
		end := session.ScheduledAt.Add(time.Duration(session.DurationMinutes) * time.Minute)
		if session.ScheduledAt.Before(requestedEnd) && end.After(requestedTime) {
			return true, nil
		}
	}
	return false, nil
}
