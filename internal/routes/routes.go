package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachMarketBack/internal/config"
	"github.com/saeid-a/CoachMarketBack/internal/events"
	"github.com/saeid-a/CoachMarketBack/internal/handlers"
	"github.com/saeid-a/CoachMarketBack/internal/middleware"
	"github.com/saeid-a/CoachMarketBack/internal/models"
	"github.com/saeid-a/CoachMarketBack/internal/services"
	workflowws "github.com/saeid-a/CoachMarketBack/internal/websocket"
)

// Dependencies are the long-lived collaborators owned by the server process.
type Dependencies struct {
	DB         *pgxpool.Pool
	Hub        *workflowws.Hub
	Dispatcher *events.Dispatcher
	Logger     zerolog.Logger
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, deps Dependencies) {
	workflowService := services.NewWorkflowService(
		services.NewPgTxRunner(deps.DB),
		deps.Dispatcher,
		deps.Logger,
		cfg.DefaultSessionMinutes,
		nil,
	)

	requestHandler := handlers.NewRequestHandler(workflowService)
	proposalHandler := handlers.NewProposalHandler(workflowService)
	contractHandler := handlers.NewContractHandler(workflowService)
	sessionHandler := handlers.NewSessionHandler(workflowService)
	eventsHandler := handlers.NewEventsHandler(deps.Hub, cfg.JWTSecret)

	api := app.Group("/api")

	// The websocket route authenticates through the query string, so it is
	// registered ahead of the bearer-token group.
	api.Use("/v1/ws", eventsHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(eventsHandler.HandleWebSocket))

	v1 := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	requests := v1.Group("/requests")
	requests.Post("", requestHandler.CreateRequest)
	requests.Get("", requestHandler.ListOpenRequests)
	requests.Get("/mine", requestHandler.ListMyRequests)
	requests.Get("/:id", requestHandler.GetRequest)
	requests.Get("/:id/proposals", requestHandler.ListRequestProposals)

	internal := v1.Group("/internal", middleware.RequireRole(models.RoleStudent, models.RoleAdmin))
	internal.Post("/requests/:id/deactivate", requestHandler.DeactivateRequest)

	proposals := v1.Group("/proposals")
	proposals.Post("", proposalHandler.SubmitProposal)
	proposals.Get("/mine", proposalHandler.ListMyProposals)
	proposals.Get("/:id", proposalHandler.GetProposal)
	proposals.Post("/:id/accept", proposalHandler.AcceptProposal)
	proposals.Post("/:id/decline", proposalHandler.DeclineProposal)

	contracts := v1.Group("/contracts")
	contracts.Get("", contractHandler.ListContracts)
	contracts.Get("/:id", contractHandler.GetContract)
	contracts.Post("/:id/cancel", middleware.AdminOnly(), contractHandler.CancelContract)

	sessions := v1.Group("/sessions")
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/schedule", sessionHandler.ScheduleSession)
	sessions.Post("/:id/reschedule-request", sessionHandler.RequestReschedule)
	sessions.Delete("/:id/reschedule-request", sessionHandler.ClearRescheduleRequest)
	sessions.Post("/:id/meeting-link", sessionHandler.AttachMeetingLink)
	sessions.Post("/:id/start", sessionHandler.StartSession)
	sessions.Post("/:id/complete", sessionHandler.CompleteSession)

	v1.Get("/workflow/context", contractHandler.GetContext)
}
