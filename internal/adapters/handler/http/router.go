package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewHandler(ballotHandler *BallotHandler, sessionHandler *SessionHandler, resultsHandler *ResultsHandler, events *EventHub, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ballot bridge"))
		})

		r.Route("/ballot", func(r chi.Router) {
			r.Get("/", ballotHandler.GetBallot)
			r.Post("/load", ballotHandler.LoadBallot)
			r.Put("/selections/{positionID}", ballotHandler.Select)
			r.Delete("/selections/{positionID}", ballotHandler.Clear)
			r.Delete("/selections", ballotHandler.ClearAll)
			r.Post("/submit", ballotHandler.RequestSubmit)
			r.Post("/confirm", ballotHandler.Confirm)
			r.Post("/cancel", ballotHandler.Cancel)
			r.Post("/retry", ballotHandler.Retry)
		})

		if sessionHandler != nil {
			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Post("/login", sessionHandler.Login)
				r.Post("/logout", sessionHandler.Logout)
			})
		}

		if resultsHandler != nil {
			r.Get("/results", resultsHandler.GetResults)
		}

		if events != nil {
			r.Get("/events", events.ServeWS)
		}
	})

	return r
}
