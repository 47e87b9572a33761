// Package events fans workflow state changes out to best-effort publishers
// once the owning transaction has committed.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	RequestCreated      = "request.created"
	RequestDeactivated  = "request.deactivated"
	ProposalSubmitted   = "proposal.submitted"
	ProposalAccepted    = "proposal.accepted"
	ProposalDeclined    = "proposal.declined"
	ContractCreated     = "contract.created"
	ContractCompleted   = "contract.completed"
	ContractCancelled   = "contract.cancelled"
	SessionScheduled    = "session.scheduled"
	RescheduleRequested = "session.reschedule_requested"
	RescheduleCleared   = "session.reschedule_cleared"
	MeetingLinkAttached = "session.meeting_link_attached"
	SessionStarted      = "session.started"
	SessionCompleted    = "session.completed"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EntityID   int64     `json:"entity_id"`
	ActorID    int64     `json:"actor_id"`
	Recipients []int64   `json:"recipients"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

func New(eventType string, entityID int64, actorID int64, payload any, recipients ...int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EntityID:   entityID,
		ActorID:    actorID,
		Recipients: dedupeRecipients(recipients),
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

func dedupeRecipients(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher runs every publisher for every event in the background. Failures
// are logged and dropped.
type Dispatcher struct {
	publishers []Publisher
	timeout    time.Duration
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

func NewDispatcher(logger zerolog.Logger, timeout time.Duration, publishers ...Publisher) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	active := make([]Publisher, 0, len(publishers))
	for _, publisher := range publishers {
		if publisher != nil {
			active = append(active, publisher)
		}
	}
	return &Dispatcher{
		publishers: active,
		timeout:    timeout,
		logger:     logger,
	}
}

func (d *Dispatcher) Dispatch(events ...Event) {
	if d == nil || len(d.publishers) == 0 || len(events) == 0 {
		return
	}

	batch := append([]Event(nil), events...)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, event := range batch {
			d.publish(event)
		}
	}()
}

func (d *Dispatcher) publish(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var errs []error
	for _, publisher := range d.publishers {
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		d.logger.Warn().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Int64("entity_id", event.EntityID).
			Msg("workflow event publish failed")
	}
}

// Wait blocks until all in-flight dispatches finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
