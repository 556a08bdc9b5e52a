package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/queuebot/internal/bridge"
	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/leaderboard"
	"github.com/DoyleJ11/queuebot/internal/rating"
)

// fakePlatform records every call in memory.
type fakePlatform struct {
	mu       sync.Mutex
	next     int
	sent     map[string][]Message
	dms      map[string][]Message
	roles    map[string]Role
	members  map[string]map[string]bool
	webhooks []string
	deleted  []string
	failDMs  bool
}

func newFake() *fakePlatform {
	return &fakePlatform{
		sent:    make(map[string][]Message),
		dms:     make(map[string][]Message),
		roles:   make(map[string]Role),
		members: make(map[string]map[string]bool),
	}
}

func (f *fakePlatform) SendMessage(_ context.Context, channelID string, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], m)
	return nil
}

func (f *fakePlatform) DirectMessage(_ context.Context, userID string, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDMs {
		return errors.New("dms closed")
	}
	f.dms[userID] = append(f.dms[userID], m)
	return nil
}

func (f *fakePlatform) Roles(context.Context) ([]Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakePlatform) CreateRole(_ context.Context, name string) (Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	r := Role{ID: fmt.Sprintf("role%d", f.next), Name: name}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakePlatform) DeleteRole(_ context.Context, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, roleID)
	for _, held := range f.members {
		delete(held, roleID)
	}
	return nil
}

func (f *fakePlatform) AddRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[userID] == nil {
		f.members[userID] = make(map[string]bool)
	}
	f.members[userID][roleID] = true
	return nil
}

func (f *fakePlatform) RemoveRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[userID], roleID)
	return nil
}

func (f *fakePlatform) HasRole(_ context.Context, userID, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[userID][roleID], nil
}

func (f *fakePlatform) ExecuteWebhook(_ context.Context, _ Webhook, m Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("msg%d", f.next)
	f.webhooks = append(f.webhooks, m.Title)
	return id, nil
}

func (f *fakePlatform) DeleteWebhookMessage(_ context.Context, _ Webhook, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakePlatform) roleNamed(name string) (Role, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

type staticRatings rating.Snapshot

func (s staticRatings) Ratings(context.Context, string) (rating.Snapshot, error) {
	return rating.Snapshot(s), nil
}

var tiers = leaderboard.NewTiers(
	leaderboard.Tier{Name: "Bronze", RoleID: "bronze", Limit: 0},
	leaderboard.Tier{Name: "Silver", RoleID: "silver", Limit: 1500},
	leaderboard.Tier{Name: "Gold", RoleID: "gold", Limit: 2000},
)

func newDispatcher(p *fakePlatform, r RatingSource) *Dispatcher {
	return NewDispatcher(p, r, Config{
		Prefix:        "!",
		RankedRole:    "ranked",
		Tiers:         tiers,
		Webhooks:      map[string]Webhook{"c1": {ID: "w", Token: "t"}},
		BridgeChannel: "bridge",
		PageLen:       2,
	}, nil)
}

func testGame() *gamelog.Game {
	return &gamelog.Game{
		Lobby:     "c1",
		ID:        7,
		Team1:     []string{"a", "b"},
		Team2:     []string{"c", "d"},
		CreatedAt: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_QueueMessages(t *testing.T) {
	ctx := context.Background()
	p := newFake()
	d := newDispatcher(p, nil)

	queue := hub.QueueView{Capacity: 10, Players: []string{"a", "b"}}
	d.Handle(ctx, hub.Event{Kind: hub.PlayerJoined, Lobby: "c1", Player: "b", Queue: queue})
	d.Handle(ctx, hub.Event{Kind: hub.PlayerLeft, Lobby: "c1", Player: "x", Reason: hub.ReasonTimeout, Queue: queue})
	d.Handle(ctx, hub.Event{Kind: hub.PlayerLeft, Lobby: "c1", Player: "y", Reason: hub.ReasonGameStarted, Queue: queue})
	d.Handle(ctx, hub.Event{Kind: hub.QueueExpiring, Lobby: "c1", Player: "a", Minutes: 5})

	require.Len(t, p.sent["c1"], 3)
	assert.Equal(t, "[2/10] <@b> joined the queue.", p.sent["c1"][0].Description)
	assert.Equal(t, "[2/10] <@x> left the queue (Timeout).", p.sent["c1"][1].Description)
	assert.Equal(t, "[2/10] <@y> left the queue (Game started).", p.sent["c1"][2].Description)

	require.Len(t, p.dms["a"], 1)
	assert.Contains(t, p.dms["a"][0].Description, "in 5 minutes, use `!expire`")
}

func TestDispatcher_MatchStarted(t *testing.T) {
	ctx := context.Background()
	p := newFake()
	d := newDispatcher(p, nil)

	g := testGame()
	d.Handle(ctx, hub.Event{Kind: hub.MatchStarted, Lobby: "c1", LobbyName: "Main", Game: g, Quality: 0.47})

	require.Len(t, p.sent["c1"], 1)
	announce := p.sent["c1"][0]
	assert.Equal(t, "Main Game 7", announce.Title)
	assert.Equal(t, "<@a> <@b> <@c> <@d>", announce.Content)
	assert.Contains(t, announce.Description, "**Match quality:** 47%")

	for _, u := range g.Players() {
		assert.Len(t, p.dms[u], 1, u)
	}

	require.Len(t, p.sent["bridge"], 1)
	got, err := bridge.Decode(p.sent["bridge"][0].Content)
	require.NoError(t, err)
	assert.Equal(t, g.Players(), got.Players)

	game, ok := p.roleNamed("Main Game 7")
	require.True(t, ok)
	team2, ok := p.roleNamed("Main Game 7 Team 2")
	require.True(t, ok)
	assert.True(t, p.members["a"][game.ID])
	assert.True(t, p.members["c"][team2.ID])
	assert.False(t, p.members["a"][team2.ID])
}

func TestDispatcher_FailuresDoNotStopOtherCalls(t *testing.T) {
	p := newFake()
	p.failDMs = true
	d := newDispatcher(p, nil)

	d.Handle(context.Background(), hub.Event{Kind: hub.MatchStarted, Lobby: "c1", LobbyName: "Main", Game: testGame()})
	assert.Len(t, p.sent["c1"], 1)
	_, ok := p.roleNamed("Main Game 7 Team 1")
	assert.True(t, ok)
}

func TestDispatcher_TeamsChangedMovesRoles(t *testing.T) {
	ctx := context.Background()
	p := newFake()
	d := newDispatcher(p, nil)
	before := testGame()
	d.Handle(ctx, hub.Event{Kind: hub.MatchStarted, Lobby: "c1", LobbyName: "Main", Game: before})

	after := before.Clone()
	after.Team1 = []string{"c", "b"}
	after.Team2 = []string{"sub", "d"}
	d.Handle(ctx, hub.Event{Kind: hub.TeamsChanged, Lobby: "c1", LobbyName: "Main", Game: &after, Before: before})

	game, _ := p.roleNamed("Main Game 7")
	team1, _ := p.roleNamed("Main Game 7 Team 1")
	team2, _ := p.roleNamed("Main Game 7 Team 2")

	assert.False(t, p.members["a"][game.ID], "a left the game")
	assert.False(t, p.members["a"][team1.ID])
	assert.True(t, p.members["c"][team1.ID])
	assert.False(t, p.members["c"][team2.ID])
	assert.True(t, p.members["sub"][game.ID])
	assert.True(t, p.members["sub"][team2.ID])
}

func TestDispatcher_GameScored(t *testing.T) {
	ctx := context.Background()
	p := newFake()
	d := newDispatcher(p, nil)
	g := testGame()
	d.Handle(ctx, hub.Event{Kind: hub.MatchStarted, Lobby: "c1", LobbyName: "Main", Game: g})

	require.NoError(t, p.AddRole(ctx, "a", "ranked"))
	require.NoError(t, p.AddRole(ctx, "a", "silver"))
	require.NoError(t, p.AddRole(ctx, "c", "ranked"))

	g.Outcome = gamelog.Team1Win
	d.Handle(ctx, hub.Event{Kind: hub.GameScored, Lobby: "c1", LobbyName: "Main", Game: g, Changes: []hub.RatingChange{
		{Player: "a", Old: 1980, New: 2010, Best: 2010},
		{Player: "b", Old: 1500, New: 1520, Best: 1520},
		{Player: "c", Old: 1500, New: 1480, Best: 1700},
		{Player: "d", Old: 1500, New: 1480, Best: 1480},
	}})

	result := p.sent["c1"][1]
	assert.Equal(t, "Main Game 7: Team 1 won", result.Title)
	lines := strings.Split(result.Description, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "<@a> 1980 + 30 = 2010 <@&silver> => <@&gold>", lines[0])
	assert.Equal(t, "<@b> 1500 + 20 = 1520", lines[1], "unranked players get no rank change")
	assert.Equal(t, "<@c> 1500 - 20 = 1480 <@&silver> => <@&bronze>", lines[2])

	_, ok := p.roleNamed("Main Game 7")
	assert.False(t, ok, "game roles are deleted")

	assert.True(t, p.members["a"]["gold"])
	assert.False(t, p.members["a"]["silver"])
	assert.True(t, p.members["c"]["silver"], "tier follows the best lobby")
	assert.False(t, p.members["b"]["silver"])
}

func TestDispatcher_LeaderboardReplacesWebhookMessages(t *testing.T) {
	ctx := context.Background()
	p := newFake()
	snap := rating.Snapshot{
		"a": {Rating: rating.Rating{Mean: 2100, Variance: 1}},
		"b": {Rating: rating.Rating{Mean: 1600, Variance: 1}},
		"c": {Rating: rating.Rating{Mean: 1400, Variance: 1}},
		"d": {Rating: rating.Rating{Mean: 1000, Variance: 1}},
	}
	d := newDispatcher(p, staticRatings(snap))
	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, p.AddRole(ctx, u, "ranked"))
	}

	d.Handle(ctx, hub.Event{Kind: hub.RatingsChanged, Lobby: "c1"})
	assert.Equal(t, []string{"Leaderboard (1/2)", "Leaderboard (2/2)"}, p.webhooks)
	assert.Empty(t, p.deleted)

	d.Handle(ctx, hub.Event{Kind: hub.RatingsChanged, Lobby: "c1"})
	assert.Len(t, p.deleted, 2)
	assert.Len(t, p.webhooks, 4)

	// no webhook configured for c2
	d.Handle(ctx, hub.Event{Kind: hub.RatingsChanged, Lobby: "c2"})
	assert.Len(t, p.webhooks, 4)
}

func TestDispatcher_RunDeliversPublishedEvents(t *testing.T) {
	p := newFake()
	d := newDispatcher(p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Publish(hub.Event{Kind: hub.QueueFrozen, Lobby: "c1"})
	d.Publish(hub.Event{Kind: hub.QueueUnfrozen, Lobby: "c1"})

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.sent["c1"]) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Queue frozen.", p.sent["c1"][0].Description)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
