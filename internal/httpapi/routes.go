package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/hub"
	"github.com/DoyleJ11/yahtzee-backend/internal/ws"
)

// SetupRoutes wires the status API. res may be nil when no game log is configured.
func SetupRoutes(h *hub.Hub, res Results, log *zap.Logger) http.Handler {
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Route("/tables", func(r chi.Router) {
		r.Post("/", CreateTable(h, log))
		r.Get("/", ListTables(h))
		r.Get("/{code}", GetTable(h))
	})
	if res != nil {
		r.Get("/results", RecentResults(res, log))
	}
	r.Get("/ws", ws.Handler(h, log))
	return r
}
