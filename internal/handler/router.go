package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	sessionHandler "github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/handler/session"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/handler/ws"
	middlewarePkg "github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/middleware"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/hub"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/registry"
)

// NewRouter wires HTTP routes to the core services.
func NewRouter(reg *registry.Registry, h *hub.Hub, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	restHandler := sessionHandler.New(reg)
	wsHandler := ws.New(reg, h)

	r.Route("/api", func(api chi.Router) {
		restHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
