package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 30 * time.Second
	outboxSize   = 16
)

// Subscriber is the part of the hub a stream needs.
type Subscriber interface {
	Subscribe(ctx context.Context, lobby, clientID string, outbox chan hub.Event) (hub.QueueView, error)
	Unsubscribe(lobby, clientID string)
	Queue(ctx context.Context, lobby string) (hub.QueueView, error)
}

// ClientMessage is the only frame clients send. "Snapshot" asks for the
// current queue.
type ClientMessage struct {
	Type string `json:"type"`
}

// Handler streams a lobby's events: one Snapshot frame with the current
// queue, then one Event frame per committed change. The stream ends when
// the client goes away or falls too far behind.
func Handler(h Subscriber, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		lobby := r.URL.Query().Get("lobby")
		if lobby == "" {
			http.Error(w, "missing lobby", http.StatusBadRequest)
			return
		}

		out := make(chan hub.Event, outboxSize)
		clientID := uuid.NewString()
		view, err := h.Subscribe(r.Context(), lobby, clientID, out)
		if errors.Is(err, hub.ErrUnknownLobby) {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		defer h.Unsubscribe(lobby, clientID)

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		log.Debug("client connected", zap.String("lobby", lobby), zap.String("client", clientID))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		q := types.Queue(view)
		if err := write(ctx, conn, types.ServerMessage{Type: types.TypeSnapshot, Queue: &q}); err != nil {
			return
		}

		// Writer goroutine
		go func() {
			defer cancel()
			ping := time.NewTicker(pingInterval)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case e, ok := <-out:
					if !ok {
						conn.Close(websocket.StatusPolicyViolation, "too slow")
						return
					}
					ev := types.Event(e)
					if err := write(ctx, conn, types.ServerMessage{Type: types.TypeEvent, Event: &ev}); err != nil {
						return
					}
				case <-ping.C:
					pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.String("client", clientID), zap.Error(err))
				}
				return
			}

			var cm ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: types.TypeError, Error: "bad json"})
				continue
			}
			if cm.Type != types.TypeSnapshot {
				_ = write(ctx, conn, types.ServerMessage{Type: types.TypeError, Error: "unknown type"})
				continue
			}
			view, err := h.Queue(ctx, lobby)
			if err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: types.TypeError, Error: "unavailable"})
				continue
			}
			q := types.Queue(view)
			_ = write(ctx, conn, types.ServerMessage{Type: types.TypeSnapshot, Queue: &q})
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
