package ws

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/rating"
	"github.com/DoyleJ11/queuebot/internal/types"
)

func newServer(t *testing.T) (*hub.Hub, *httptest.Server) {
	t.Helper()
	store := gamelog.NewMemory()
	h, err := hub.New(context.Background(), hub.Config{
		Lobbies: []hub.LobbyConfig{{Channel: "c1", Name: "Main", Capacity: 4}},
	}, hub.Deps{
		Games: store,
		Seeds: store,
		Model: rating.NewOpenSkill(1500, 500, 0),
		Rand:  rand.New(rand.NewPCG(1, 2)),
	})
	require.NoError(t, err)
	t.Cleanup(h.Close)

	srv := httptest.NewServer(Handler(h, nil))
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, lobby string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?lobby=" + lobby
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func recv(t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHandler_SnapshotThenEvents(t *testing.T) {
	h, srv := newServer(t)
	require.NoError(t, h.Join(context.Background(), "c1", "a"))

	conn := dial(t, srv, "c1")
	first := recv(t, conn)
	assert.Equal(t, types.TypeSnapshot, first.Type)
	require.NotNil(t, first.Queue)
	assert.Equal(t, []string{"a"}, first.Queue.Players)
	assert.Equal(t, 4, first.Queue.Capacity)

	require.NoError(t, h.Join(context.Background(), "c1", "b"))
	ev := recv(t, conn)
	assert.Equal(t, types.TypeEvent, ev.Type)
	require.NotNil(t, ev.Event)
	assert.Equal(t, string(hub.PlayerJoined), ev.Event.Kind)
	assert.Equal(t, "b", ev.Event.Player)
	assert.Equal(t, []string{"a", "b"}, ev.Event.Queue.Players)
}

func TestHandler_ClientRequests(t *testing.T) {
	_, srv := newServer(t)
	conn := dial(t, srv, "c1")
	recv(t, conn)

	ctx := context.Background()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Snapshot"}`)))
	assert.Equal(t, types.TypeSnapshot, recv(t, conn).Type)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"LockPick"}`)))
	assert.Equal(t, types.ServerMessage{Type: types.TypeError, Error: "unknown type"}, recv(t, conn))

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`nope`)))
	assert.Equal(t, types.ServerMessage{Type: types.TypeError, Error: "bad json"}, recv(t, conn))
}

func TestHandler_RejectsUnknownLobby(t *testing.T) {
	_, srv := newServer(t)

	resp, err := http.Get(srv.URL + "/?lobby=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
