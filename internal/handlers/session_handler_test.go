package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/repository"
	"github.com/saeid-a/CoachMarketBack/internal/services"
)

type stubSessionService struct {
	listResult     []models.Session
	listErr        error
	detail         *models.SessionDetail
	err            error
	completeResult *services.CompleteResult
	lastActor      models.Actor
	lastSessionID  int64
	lastListFilter repository.SessionListFilter
	lastSchedule   services.ScheduleInput
	lastReschedule services.RescheduleInput
	lastLink       string
	calls          []string
}

func (s *stubSessionService) record(call string, actor models.Actor, sessionID int64) {
	s.calls = append(s.calls, call)
	s.lastActor = actor
	s.lastSessionID = sessionID
}

func (s *stubSessionService) ListSessions(_ context.Context, actor models.Actor, filter repository.SessionListFilter) ([]models.Session, error) {
	s.record("list", actor, 0)
	s.lastListFilter = filter
	return s.listResult, s.listErr
}

func (s *stubSessionService) GetSession(_ context.Context, actor models.Actor, sessionID int64) (*models.SessionDetail, error) {
	s.record("get", actor, sessionID)
	return s.detail, s.err
}

func (s *stubSessionService) ScheduleSession(_ context.Context, actor models.Actor, sessionID int64, input services.ScheduleInput) (*models.SessionDetail, error) {
	s.record("schedule", actor, sessionID)
	s.lastSchedule = input
	return s.detail, s.err
}

func (s *stubSessionService) RequestReschedule(_ context.Context, actor models.Actor, sessionID int64, input services.RescheduleInput) (*models.SessionDetail, error) {
	s.record("reschedule", actor, sessionID)
	s.lastReschedule = input
	return s.detail, s.err
}

func (s *stubSessionService) ClearRescheduleRequest(_ context.Context, actor models.Actor, sessionID int64) (*models.SessionDetail, error) {
	s.record("clear", actor, sessionID)
	return s.detail, s.err
}

func (s *stubSessionService) AttachMeetingLink(_ context.Context, actor models.Actor, sessionID int64, link string) (*models.SessionDetail, error) {
	s.record("link", actor, sessionID)
	s.lastLink = link
	return s.detail, s.err
}

func (s *stubSessionService) StartSession(_ context.Context, actor models.Actor, sessionID int64) (*models.SessionDetail, error) {
	s.record("start", actor, sessionID)
	return s.detail, s.err
}

func (s *stubSessionService) CompleteSession(_ context.Context, actor models.Actor, sessionID int64) (*services.CompleteResult, error) {
	s.record("complete", actor, sessionID)
	return s.completeResult, s.err
}

func newSessionTestApp(service *stubSessionService, role, userID string) *fiber.App {
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Post("/api/v1/sessions/:id/schedule", handler.ScheduleSession)
	app.Post("/api/v1/sessions/:id/reschedule-request", handler.RequestReschedule)
	app.Delete("/api/v1/sessions/:id/reschedule-request", handler.ClearRescheduleRequest)
	app.Post("/api/v1/sessions/:id/meeting-link", handler.AttachMeetingLink)
	app.Post("/api/v1/sessions/:id/start", handler.StartSession)
	app.Post("/api/v1/sessions/:id/complete", handler.CompleteSession)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	payload := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestScheduleSessionForwardsInput(t *testing.T) {
	service := &stubSessionService{detail: &models.SessionDetail{Session: models.Session{ID: 31, Status: models.SessionScheduled}}}
	app := newSessionTestApp(service, models.RoleCoach, "7")

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/sessions/31/schedule", `{
		"scheduled_at": "2026-03-15T09:00:00Z",
		"duration_minutes": 45
	}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActor != (models.Actor{UserID: 7, Role: models.RoleCoach}) {
		t.Fatalf("unexpected actor: %+v", service.lastActor)
	}
	if service.lastSessionID != 31 || service.lastSchedule.DurationMinutes != 45 {
		t.Fatalf("unexpected schedule call: id=%d input=%+v", service.lastSessionID, service.lastSchedule)
	}
	if !service.lastSchedule.ScheduledAt.Equal(time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected scheduled_at: %v", service.lastSchedule.ScheduledAt)
	}
}

func TestScheduleSessionRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"scheduled_at":`},
		{name: "bad timestamp", body: `{"scheduled_at":"tomorrow","duration_minutes":60}`},
		{name: "missing timestamp", body: `{"duration_minutes":60}`},
		{name: "zero duration", body: `{"scheduled_at":"2026-03-15T09:00:00Z","duration_minutes":0}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubSessionService{}
			app := newSessionTestApp(service, models.RoleCoach, "7")

			resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/sessions/31/schedule", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if payload["kind"] != "validation" {
				t.Fatalf("expected validation kind, got %v", payload["kind"])
			}
			if len(service.calls) != 0 {
				t.Fatalf("service must not be called, got %v", service.calls)
			}
		})
	}
}

func TestCompleteSessionReportsCurrentStatusOnInvalidState(t *testing.T) {
	service := &stubSessionService{err: &services.WorkflowError{
		Err:      services.ErrInvalidState,
		Op:       "complete",
		Entity:   services.EntitySession,
		EntityID: 55,
		Status:   string(models.SessionScheduled),
	}}
	app := newSessionTestApp(service, models.RoleStudent, "42")

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/sessions/55/complete", "")

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if payload["kind"] != "invalid_state" || payload["current_status"] != "scheduled" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["entity"] != "session" || payload["entity_id"] != float64(55) || payload["operation"] != "complete" {
		t.Fatalf("unexpected error context: %v", payload)
	}
}

func TestCompleteSessionReturnsContractProgress(t *testing.T) {
	service := &stubSessionService{completeResult: &services.CompleteResult{
		Session:  &models.SessionDetail{Session: models.Session{ID: 55, Status: models.SessionCompleted}},
		Contract: &models.Contract{ID: 3, CompletedSessions: 4, TotalSessions: 4, Status: models.ContractCompleted},
	}}
	app := newSessionTestApp(service, models.RoleCoach, "7")

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/sessions/55/complete", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	contract, _ := payload["contract"].(map[string]any)
	if contract["status"] != "completed" || contract["completed_sessions"] != float64(4) {
		t.Fatalf("unexpected contract payload: %v", payload["contract"])
	}
}

func TestListSessionsPassesFilters(t *testing.T) {
	service := &stubSessionService{listResult: []models.Session{{ID: 5, Status: models.SessionScheduled}}}
	app := newSessionTestApp(service, models.RoleCoach, "9")

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/sessions?status=scheduled&timeframe=unscheduled&contract_id=4", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActor.Role != models.RoleCoach {
		t.Fatalf("expected coach role, got %q", service.lastActor.Role)
	}
	want := repository.SessionListFilter{ContractID: 4, Status: "scheduled", Timeframe: "unscheduled"}
	if service.lastListFilter != want {
		t.Fatalf("unexpected filter: %+v", service.lastListFilter)
	}
}

func TestListSessionsRejectsUnknownTimeframe(t *testing.T) {
	service := &stubSessionService{}
	app := newSessionTestApp(service, models.RoleStudent, "42")

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/sessions?timeframe=later", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetSessionMapsNotFoundAndForbidden(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: &services.WorkflowError{Err: services.ErrNotFound, Op: "getSession", Entity: "session", EntityID: 999}, want: http.StatusNotFound},
		{err: &services.WorkflowError{Err: services.ErrForbidden, Op: "getSession", Entity: "session", EntityID: 999}, want: http.StatusForbidden},
	}

	for _, tc := range tests {
		service := &stubSessionService{err: tc.err}
		app := newSessionTestApp(service, models.RoleStudent, "42")

		resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/sessions/999", "")
		if resp.StatusCode != tc.want {
			t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
		}
	}
}

func TestSessionRoutesRejectInvalidIdentityAndIDs(t *testing.T) {
	service := &stubSessionService{}

	app := newSessionTestApp(service, models.RoleStudent, "abc")
	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/sessions/1/start", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	app = newSessionTestApp(service, "guest", "42")
	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/sessions/1/start", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown role, got %d", resp.StatusCode)
	}

	app = newSessionTestApp(service, models.RoleStudent, "42")
	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/sessions/zero/start", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(service.calls) != 0 {
		t.Fatalf("service must not be called, got %v", service.calls)
	}
}

func TestRescheduleRoutes(t *testing.T) {
	service := &stubSessionService{detail: &models.SessionDetail{Session: models.Session{ID: 12}}}
	app := newSessionTestApp(service, models.RoleStudent, "42")

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/sessions/12/reschedule-request", `{"new_date":"2026-04-01T10:30:00+02:00","reason":"travel"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastReschedule.Reason != "travel" || !service.lastReschedule.NewDate.Equal(time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reschedule input: %+v", service.lastReschedule)
	}

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/sessions/12/reschedule-request", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.calls[len(service.calls)-1] != "clear" {
		t.Fatalf("expected clear call, got %v", service.calls)
	}
}

func TestAttachMeetingLinkValidatesURL(t *testing.T) {
	service := &stubSessionService{detail: &models.SessionDetail{Session: models.Session{ID: 12}}}
	app := newSessionTestApp(service, models.RoleCoach, "7")

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/sessions/12/meeting-link", `{"meeting_link":"zoom room 4"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if msg, _ := payload["error"].(string); !strings.Contains(msg, "meeting_link") {
		t.Fatalf("expected field name in message, got %q", msg)
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/sessions/12/meeting-link", `{"meeting_link":" https://meet.example.com/r/1 "}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastLink != "https://meet.example.com/r/1" {
		t.Fatalf("unexpected link: %q", service.lastLink)
	}
}

func TestFatalInvariantIsOpaqueServerError(t *testing.T) {
	service := &stubSessionService{err: &services.WorkflowError{
		Err:    services.ErrFatalInvariant,
		Op:     "complete",
		Entity: "contract",
		Detail: "5 completed sessions exceed total of 4",
	}}
	app := newSessionTestApp(service, models.RoleCoach, "7")

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/sessions/3/complete", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if payload["kind"] != "fatal_invariant" {
		t.Fatalf("unexpected kind: %v", payload["kind"])
	}
	if msg, _ := payload["error"].(string); strings.Contains(msg, "exceed") {
		t.Fatalf("internal detail leaked: %q", msg)
	}
}
