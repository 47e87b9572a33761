package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidState   = errors.New("invalid state")
	ErrForbidden      = errors.New("forbidden")
	ErrFatalInvariant = errors.New("fatal invariant violation")
)

const (
	EntityRequest  = "request"
	EntityProposal = "proposal"
	EntityContract = "contract"
	EntitySession  = "session"
)

// WorkflowError carries enough context for a caller to reconcile its view:
// which operation failed, on which entity, and the entity's actual status.
type WorkflowError struct {
	Err      error
	Op       string
	Entity   string
	EntityID int64
	Status   string
	Detail   string
}

func (e *WorkflowError) Error() string {
	msg := fmt.Sprintf("%s %s %d: %s", e.Op, e.Entity, e.EntityID, e.Err.Error())
	if e.Status != "" {
		msg += fmt.Sprintf(" (current status %s)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Kind returns the stable machine-readable name of the error class.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrFatalInvariant):
		return "fatal_invariant"
	default:
		return "internal"
	}
}

func validationError(op, entity string, id int64, detail string) error {
	return &WorkflowError{Err: ErrValidation, Op: op, Entity: entity, EntityID: id, Detail: detail}
}

func notFoundError(op, entity string, id int64) error {
	return &WorkflowError{Err: ErrNotFound, Op: op, Entity: entity, EntityID: id}
}

func conflictError(op, entity string, id int64, detail string) error {
	return &WorkflowError{Err: ErrConflict, Op: op, Entity: entity, EntityID: id, Detail: detail}
}

func invalidStateError(op, entity string, id int64, status string, detail string) error {
	return &WorkflowError{Err: ErrInvalidState, Op: op, Entity: entity, EntityID: id, Status: status, Detail: detail}
}

func forbiddenError(op, entity string, id int64) error {
	return &WorkflowError{Err: ErrForbidden, Op: op, Entity: entity, EntityID: id}
}

func fatalInvariantError(op, entity string, id int64, detail string) error {
	return &WorkflowError{Err: ErrFatalInvariant, Op: op, Entity: entity, EntityID: id, Detail: detail}
}

// lookupError turns a repository miss into a NotFound error and passes other
// failures through untouched.
func lookupError(err error, op, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFoundError(op, entity, id)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
