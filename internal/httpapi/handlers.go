package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/leaderboard"
	"github.com/DoyleJ11/queuebot/internal/rating"
	"github.com/DoyleJ11/queuebot/internal/types"
	"github.com/DoyleJ11/queuebot/internal/ws"
	wire "github.com/DoyleJ11/queuebot/pkg/types"
)

// Hub is the read side of the hub the API serves.
type Hub interface {
	ws.Subscriber
	Lobbies(ctx context.Context) ([]hub.QueueView, error)
	Game(ctx context.Context, lobby string, id int) (gamelog.Game, error)
	Ratings(ctx context.Context, lobby string) (rating.Snapshot, error)
}

type Config struct {
	PageLen int
	Tiers   leaderboard.Tiers
	// Eligible filters leaderboard rows; nil lists every rated player.
	Eligible func(ctx context.Context, playerID string) (bool, error)
}

type server struct {
	hub Hub
	cfg Config
	log *zap.Logger
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *server) lobbies(w http.ResponseWriter, r *http.Request) {
	views, err := s.hub.Lobbies(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]wire.Queue, len(views))
	for i, v := range views {
		out[i] = types.Queue(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) lobby(w http.ResponseWriter, r *http.Request) {
	q, err := s.hub.Queue(r.Context(), chi.URLParam(r, "lobby"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Queue(q))
}

func (s *server) game(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}
	g, err := s.hub.Game(r.Context(), chi.URLParam(r, "lobby"), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Game(g))
}

func (s *server) leaderboard(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		page = n
	}
	snap, err := s.hub.Ratings(r.Context(), chi.URLParam(r, "lobby"))
	if err != nil {
		s.fail(w, err)
		return
	}
	var eligible leaderboard.Eligible
	if s.cfg.Eligible != nil {
		eligible = func(id string) (bool, error) { return s.cfg.Eligible(r.Context(), id) }
	}
	pages, err := leaderboard.Build(snap, s.cfg.PageLen, s.cfg.Tiers, eligible)
	if err != nil {
		s.fail(w, err)
		return
	}
	p, err := leaderboard.PageAt(pages, page)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LeaderboardPage(p, s.cfg.Tiers))
}

func (s *server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hub.ErrUnknownLobby), errors.Is(err, hub.ErrUnknownGame), errors.Is(err, leaderboard.ErrBadPage):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, hub.ErrClosed):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	default:
		s.log.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
