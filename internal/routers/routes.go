package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"interviewlab/internal/handlers"
	"interviewlab/internal/metrics"
)

// NewRouter assembles the HTTP surface: session lifecycle routes, the live
// websocket gateway, health probes and the metrics endpoint.
func NewRouter(sessionHandler *handlers.SessionHandler, liveHandler *handlers.LiveHandler, healthHandler *handlers.HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Timeout(60*time.Second))
	r.Use(metrics.Middleware)

	r.Get("/healthz", healthHandler.HealthzHandler)
	r.Get("/readyz", healthHandler.ReadyzHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", sessionHandler.CreateSessionHandler)
		r.Get("/{id}", sessionHandler.GetSessionHandler)
		r.Post("/{id}/answer", sessionHandler.SubmitAnswerHandler)
		r.Post("/{id}/skip", sessionHandler.SkipHandler)
		r.Post("/{id}/run", sessionHandler.RunCodeHandler)
		r.Post("/{id}/code", sessionHandler.SubmitCodeHandler)
		r.Post("/{id}/followup", sessionHandler.FollowUpHandler)
		r.Post("/{id}/violation", sessionHandler.ViolationHandler)
		r.Post("/{id}/resume", sessionHandler.ResumeHandler)
		r.Post("/{id}/end", sessionHandler.EndSessionHandler)
		r.Get("/{id}/live", liveHandler.LiveSessionWS)
	})

	return r
}
