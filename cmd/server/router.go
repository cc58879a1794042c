package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidra/vidra-api/internal/api"
	apiMiddleware "github.com/vidra/vidra-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and
// middleware registered.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.taskService)

	rateLimiter := apiMiddleware.NewRateLimiter(
		app.config.Server.RateLimitRPM,
		apiMiddleware.NewRedisClient(app.config.Redis),
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimiter.Middleware)
			r.Post("/tasks", taskHandler.CreateTask)
			r.Post("/video-info", taskHandler.VideoInfo)
		})

		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{taskID}", taskHandler.GetTask)
		r.Delete("/tasks/{taskID}", taskHandler.CancelTask)

		r.Get("/health", taskHandler.Health)
	})

	// Bare health endpoint for load balancer probes.
	r.Get("/health", taskHandler.Health)

	return r
}
