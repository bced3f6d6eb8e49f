package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/radar-pi/pkg/logger"
)

// Router is the render server router
type Router struct {
	handler    *Handler
	middleware *Middleware
	logger     *logger.Logger
}

// NewRouter creates a router serving the record stored at dataFile
func NewRouter(dataFile string, logger *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(dataFile, logger),
		middleware: NewMiddleware(logger),
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the render server routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.NoCache)

	// Display surface captured by the browser
	router.Get("/", r.handler.GetDisplayPage)

	router.Route("/api", func(router chi.Router) {
		router.Get("/flight-data", r.handler.GetFlightData)
	})

	router.Get("/health", r.handler.GetHealth)

	return router
}
