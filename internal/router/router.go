package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"voting-platform/internal/container"
	"voting-platform/internal/handler"
	"voting-platform/internal/middleware"
	"voting-platform/pkg/errors"
)

// New configures and returns the HTTP router
func New(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()
	authService := c.GetAuthService()

	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins...), log))
	r.Use(middleware.RequestID())
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	healthHandler := handler.NewHealthHandler(c)
	authHandler := handler.NewAuthHandler(authService, log)
	pollHandler := handler.NewPollHandler(c.Services.Polls, log)
	userHandler := handler.NewUserHandler(c.Services.Users, log)
	wsHandler := handler.NewWSHandler(authService, c.Hub, cfg.AllowedOrigins, log)

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		// websocket upgrades bypass compression and the request timeout
		r.Get("/ws", wsHandler.Connect)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Compress(5))
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Post("/auth/login", authHandler.Login)
			r.Get("/polls", pollHandler.ListPolls)
			r.Get("/polls/{pollId}", pollHandler.GetPoll)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(authService, log))

				r.Get("/auth/me", authHandler.Me)
				r.Get("/polls/voted", pollHandler.VotedPolls)
				r.Post("/polls/{pollId}/vote", pollHandler.Vote)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireOwner(log))

					r.Post("/polls", pollHandler.CreatePoll)
					r.Get("/polls/export", pollHandler.Export)
					r.Post("/polls/{pollId}/toggle", pollHandler.TogglePoll)
					r.Patch("/polls/{pollId}/status", pollHandler.SetPollStatus)
					r.Delete("/polls/{pollId}", pollHandler.DeletePoll)

					r.Get("/users", userHandler.ListUsers)
					r.Patch("/users/{userId}/role", userHandler.UpdateRole)
					r.Patch("/users/{userId}/ban", userHandler.SetBanned)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, errors.NewNotFoundError("Endpoint not found"), log)
	})

	log.Info("Router configured successfully")
	return r
}
