package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/ws"
)

func SetupRoutes(h Hub, cfg Config, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PageLen <= 0 {
		cfg.PageLen = 15
	}
	s := &server{hub: h, cfg: cfg, log: log.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/lobbies", s.lobbies)
	r.Route("/lobbies/{lobby}", func(r chi.Router) {
		r.Get("/", s.lobby)
		r.Get("/games/{id}", s.game)
		r.Get("/leaderboard", s.leaderboard)
	})
	r.Get("/ws", ws.Handler(h, log))
	return r
}
