package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/http/handlers"
	"trackhub/backend/services/tracking-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Ingest         http.Handler
	Positions      *handlers.PositionsHandlers
	Stream         http.HandlerFunc
	Health         http.HandlerFunc
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes with middleware. Read APIs sit behind
// authMiddleware; ingest, the position stream and health do not.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LoggingMiddleware(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(deps.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", deps.Health)
	if deps.Stream != nil {
		r.Get("/ws/positions", deps.Stream)
	}

	r.Route("/positions", func(r chi.Router) {
		r.Method(http.MethodPost, "/ingest", deps.Ingest)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/", deps.Positions.List)
			r.Get("/latest/{imei}", deps.Positions.Latest)
			r.Get("/snapshot", deps.Positions.Snapshot)
			r.Get("/routes/{device_id}", deps.Positions.Route)
			r.Get("/trips/{device_id}", deps.Positions.Trips)
		})
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
