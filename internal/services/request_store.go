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
	opCreateRequest = "createRequest"
	opDeactivate    = "deactivate"
	opGetRequest    = "getRequest"
)

// RequestStore owns learning requests. Requests are never deleted; they are
// soft-deactivated once fulfilled or withdrawn.
type RequestStore struct{}

func NewRequestStore() *RequestStore {
	return &RequestStore{}
}

type CreateRequestInput struct {
	Title          string
	Description    string
	Budget         *float64
	SessionsNeeded int
}

func (s *RequestStore) Create(
	ctx context.Context,
	repos Repos,
	studentID int64,
	input CreateRequestInput,
) (*models.LearningRequest, error) {
	if input.SessionsNeeded < 1 {
		return nil, validationError(opCreateRequest, EntityRequest, 0, "sessions_needed must be at least 1")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError(opCreateRequest, EntityRequest, 0, "title must not be empty")
	}
	var budget *float64
	if input.Budget != nil {
		if *input.Budget < 0 {
			return nil, validationError(opCreateRequest, EntityRequest, 0, "budget must not be negative")
		}
		rounded := roundMoney(*input.Budget)
		budget = &rounded
	}

	return repos.Requests.Create(ctx, repository.CreateRequestInput{
		StudentID:      studentID,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Budget:         budget,
		SessionsNeeded: input.SessionsNeeded,
	})
}

func (s *RequestStore) Get(ctx context.Context, repos Repos, requestID int64) (*models.LearningRequest, error) {
	request, err := repos.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, opGetRequest, EntityRequest, requestID)
	}
	return request, nil
}

func (s *RequestStore) getForUpdate(
	ctx context.Context,
	repos Repos,
	requestID int64,
	op string,
) (*models.LearningRequest, error) {
	request, err := repos.Requests.GetByIDForUpdate(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, op, EntityRequest, requestID)
	}
	return request, nil
}

// Deactivate is idempotent. changed reports whether this call flipped the
// flag, which callers that need exclusivity (proposal acceptance) rely on.
func (s *RequestStore) Deactivate(
	ctx context.Context,
	repos Repos,
	requestID int64,
) (request *models.LearningRequest, changed bool, err error) {
	request, err = repos.Requests.DeactivateIfActive(ctx, requestID)
	if err == nil {
		return request, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	request, err = s.Get(ctx, repos, requestID)
	if err != nil {
		return nil, false, err
	}
	return request, false, nil
}

func (s *RequestStore) ListOpen(
	ctx context.Context,
	repos Repos,
	page int,
	limit int,
) ([]models.LearningRequest, int, error) {
	if page <= 0 || limit <= 0 {
		return nil, 0, validationError("listRequests", EntityRequest, 0, "page and limit must be positive")
	}
	return repos.Requests.ListActive(ctx, limit, (page-1)*limit)
}
