package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atelierhq/atelier/internal/adapter/otel"
	"github.com/atelierhq/atelier/internal/adapter/ws"
	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/middleware"
)

// NewRouter assembles the middleware chain and mounts every route.
// rateLimiter and authSvc may be nil; the corresponding middleware is then
// skipped (auth disabled injects the local user).
func NewRouter(h *Handlers, hub *ws.Hub, authSvc middleware.Authenticator,
	rateLimiter *middleware.RateLimiter, cfg config.Config) http.Handler {

	r := chi.NewRouter()
	// The limiter keys on the socket address, so it must run before RealIP
	// rewrites RemoteAddr from forwarded headers.
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler)
	}
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.Server.CORSOrigin))
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	r.Get("/ws", hub.HandleWS(func(req *http.Request) string {
		return middleware.UserID(req.Context())
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Chats
		r.Get("/chats", h.ListChats)
		r.Post("/chats", h.CreateChat)
		r.Get("/chats/{id}", h.GetChat)
		r.Delete("/chats/{id}", h.DeleteChat)
		r.Get("/chats/{id}/messages", h.ListChatMessages)
		r.Post("/chats/{id}/turn", h.StreamTurn)

		// Documents and their suggestions
		r.Get("/documents/{id}", h.GetDocumentVersions)
		r.Post("/documents/{id}", h.SaveDocument)
		r.Delete("/documents/{id}", h.TruncateDocument)
		r.Get("/documents/{id}/suggestions", h.ListDocumentSuggestions)

		// Agents
		r.Get("/agents", h.ListAgents)
		r.Post("/agents", h.CreateAgent)
		r.Get("/agents/{id}", h.GetAgent)
		r.Delete("/agents/{id}", h.DeleteAgent)

		// Tools
		r.Get("/tools", h.ListTools)
		r.Post("/tools", h.CreateTool)

		// Dynamic blocks
		r.Get("/blocks", h.ListBlocks)
		r.Put("/blocks/{name}", h.UpdateBlock)
	})

	return r
}
