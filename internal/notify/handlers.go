package notify

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/queuebot/internal/bridge"
	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/leaderboard"
)

func queueLine(e hub.Event, what string) string {
	return fmt.Sprintf("%s %s %s", counter(len(e.Queue.Players), e.Queue.Capacity), Mention(e.Player), what)
}

func (d *Dispatcher) playerLeft(ctx context.Context, e hub.Event) error {
	what := "left the queue."
	switch e.Reason {
	case hub.ReasonTimeout:
		what = "left the queue (Timeout)."
	case hub.ReasonGameStarted:
		what = "left the queue (Game started)."
	}
	return d.say(ctx, e.Lobby, queueLine(e, what))
}

func expiringText(minutes int, prefix string) string {
	return fmt.Sprintf("You will be removed from queue in %d minutes, use `%sexpire` if you want to stay in the queue.", minutes, prefix)
}

func capacityText(e hub.Event) string {
	return fmt.Sprintf("%s Players per team set to %d.", counter(len(e.Queue.Players), e.Queue.Capacity), e.Queue.Capacity/2)
}

func undoneText(e hub.Event) string {
	return fmt.Sprintf("Game %d reset to undecided (was %s).", e.Game.ID, e.Previous)
}

func teamsText(g gamelog.Game, quality float64) string {
	return fmt.Sprintf("**Team 1:** %s\n**Team 2:** %s\n**Match quality:** %s",
		mentions(g.Team1), mentions(g.Team2), Percent(quality))
}

// matchStarted announces the game, messages every player, creates the game
// and team roles and tells other instances about it.
func (d *Dispatcher) matchStarted(ctx context.Context, e hub.Event) error {
	g := e.Game
	announce := Message{
		Content:     mentions(g.Players()),
		Title:       fmt.Sprintf("%s Game %d", e.LobbyName, g.ID),
		Description: teamsText(*g, e.Quality),
		Timestamp:   g.CreatedAt,
	}
	dm := Message{
		Description: fmt.Sprintf("Game %d of %s has started in %s.", g.ID, e.LobbyName, Channel(e.Lobby)),
	}

	tasks := []func() error{
		func() error { return d.platform.SendMessage(ctx, e.Lobby, announce) },
		func() error { return d.createGameRoles(ctx, e.LobbyName, *g) },
	}
	for _, p := range g.Players() {
		tasks = append(tasks, func() error { return d.platform.DirectMessage(ctx, p, dm) })
	}
	if d.cfg.BridgeChannel != "" {
		tasks = append(tasks, func() error {
			content, err := bridge.EncodeGameStarted(g.Players())
			if err != nil {
				return err
			}
			return d.platform.SendMessage(ctx, d.cfg.BridgeChannel, Message{Content: content})
		})
	}
	return d.fanOut(tasks...)
}

func (d *Dispatcher) createGameRoles(ctx context.Context, lobbyName string, g gamelog.Game) error {
	game, err := d.platform.CreateRole(ctx, gameRole(lobbyName, g.ID, 0))
	if err != nil {
		return err
	}
	team1, err := d.platform.CreateRole(ctx, gameRole(lobbyName, g.ID, 1))
	if err != nil {
		return err
	}
	team2, err := d.platform.CreateRole(ctx, gameRole(lobbyName, g.ID, 2))
	if err != nil {
		return err
	}

	var tasks []func() error
	for _, p := range g.Team1 {
		tasks = append(tasks,
			func() error { return d.platform.AddRole(ctx, p, game.ID) },
			func() error { return d.platform.AddRole(ctx, p, team1.ID) })
	}
	for _, p := range g.Team2 {
		tasks = append(tasks,
			func() error { return d.platform.AddRole(ctx, p, game.ID) },
			func() error { return d.platform.AddRole(ctx, p, team2.ID) })
	}
	return d.fanOut(tasks...)
}

// gameRoles finds the existing game and team roles of a game by name.
func (d *Dispatcher) gameRoles(ctx context.Context, lobbyName string, gameID int) (map[int]Role, error) {
	roles, err := d.platform.Roles(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int]Role, 3)
	for team := 0; team <= 2; team++ {
		name := gameRole(lobbyName, gameID, team)
		if r, ok := lo.Find(roles, func(r Role) bool { return r.Name == name }); ok {
			out[team] = r
		}
	}
	return out, nil
}

func (d *Dispatcher) deleteGameRoles(ctx context.Context, lobbyName string, gameID int) error {
	roles, err := d.gameRoles(ctx, lobbyName, gameID)
	if err != nil {
		return err
	}
	var tasks []func() error
	for _, r := range roles {
		tasks = append(tasks, func() error { return d.platform.DeleteRole(ctx, r.ID) })
	}
	return d.fanOut(tasks...)
}

// teamsChanged posts the new teams and moves players between team roles.
func (d *Dispatcher) teamsChanged(ctx context.Context, e hub.Event) error {
	g := e.Game
	announce := Message{
		Title:       fmt.Sprintf("%s Game %d (teams changed)", e.LobbyName, g.ID),
		Description: teamsText(*g, e.Quality),
	}
	errs := d.platform.SendMessage(ctx, e.Lobby, announce)
	if e.Before == nil {
		return errs
	}

	roles, err := d.gameRoles(ctx, e.LobbyName, g.ID)
	if err != nil {
		return multierr.Append(errs, err)
	}
	var tasks []func() error
	players := lo.Union(e.Before.Players(), g.Players())
	for _, p := range players {
		from, to := e.Before.TeamOf(p), g.TeamOf(p)
		if from == to {
			continue
		}
		if r, ok := roles[from]; ok && from != 0 {
			tasks = append(tasks, func() error { return d.platform.RemoveRole(ctx, p, r.ID) })
		}
		if r, ok := roles[to]; ok && to != 0 {
			tasks = append(tasks, func() error { return d.platform.AddRole(ctx, p, r.ID) })
		}
		if r, ok := roles[0]; ok && (from == 0 || to == 0) {
			if to == 0 {
				tasks = append(tasks, func() error { return d.platform.RemoveRole(ctx, p, r.ID) })
			} else {
				tasks = append(tasks, func() error { return d.platform.AddRole(ctx, p, r.ID) })
			}
		}
	}
	return multierr.Append(errs, d.fanOut(tasks...))
}

// gameScored reports the result with every rating change, removes the game
// roles and updates the rank roles of ranked players.
func (d *Dispatcher) gameScored(ctx context.Context, e hub.Event) error {
	g := e.Game
	var mu sync.Mutex
	ranked := make(map[string]bool, len(e.Changes))
	var tasks []func() error
	for _, c := range e.Changes {
		tasks = append(tasks, func() error {
			ok, err := d.ranked(ctx, c.Player)
			if err != nil {
				return err
			}
			mu.Lock()
			ranked[c.Player] = ok
			mu.Unlock()
			return nil
		})
	}
	errs := d.fanOut(tasks...)

	lines := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		line := fmt.Sprintf("%s %s", Mention(c.Player), signed(c.Old, c.New))
		if ranked[c.Player] {
			before, _ := d.cfg.Tiers.For(c.Old)
			after, _ := d.cfg.Tiers.For(c.New)
			if before.RoleID != after.RoleID && after.RoleID != "" {
				line += fmt.Sprintf(" %s => %s", roleOrNone(before), RoleMention(after.RoleID))
			}
		}
		lines = append(lines, line)
	}
	result := Message{
		Title:       fmt.Sprintf("%s Game %d: %s", e.LobbyName, g.ID, resultText(g.Outcome)),
		Description: strings.Join(lines, "\n"),
	}

	tasks = []func() error{
		func() error { return d.platform.SendMessage(ctx, e.Lobby, result) },
		func() error { return d.deleteGameRoles(ctx, e.LobbyName, g.ID) },
	}
	for _, c := range e.Changes {
		if ranked[c.Player] {
			tasks = append(tasks, func() error { return d.assignTier(ctx, c.Player, c.Best) })
		}
	}
	return multierr.Append(errs, d.fanOut(tasks...))
}

func (d *Dispatcher) gameCancelled(ctx context.Context, e hub.Event) error {
	return d.fanOut(
		func() error { return d.say(ctx, e.Lobby, fmt.Sprintf("Game %d cancelled.", e.Game.ID)) },
		func() error { return d.deleteGameRoles(ctx, e.LobbyName, e.Game.ID) },
	)
}

func (d *Dispatcher) ranked(ctx context.Context, userID string) (bool, error) {
	if d.cfg.RankedRole == "" {
		return false, nil
	}
	return d.platform.HasRole(ctx, userID, d.cfg.RankedRole)
}

// assignTier gives a player the role of the tier their best mean falls in
// and removes every other tier role.
func (d *Dispatcher) assignTier(ctx context.Context, userID string, best float64) error {
	target, ok := d.cfg.Tiers.For(best)
	if !ok && len(d.cfg.Tiers) > 0 {
		target = d.cfg.Tiers[0]
	}
	var errs error
	for _, id := range d.cfg.Tiers.RoleIDs() {
		if id == "" || id == target.RoleID {
			continue
		}
		errs = multierr.Append(errs, d.platform.RemoveRole(ctx, userID, id))
	}
	if target.RoleID != "" {
		errs = multierr.Append(errs, d.platform.AddRole(ctx, userID, target.RoleID))
	}
	return errs
}

// publishLeaderboard replaces the lobby's leaderboard webhook messages.
func (d *Dispatcher) publishLeaderboard(ctx context.Context, lobby string) error {
	hook, ok := d.cfg.Webhooks[lobby]
	if !ok || d.ratings == nil {
		return nil
	}
	snap, err := d.ratings.Ratings(ctx, lobby)
	if err != nil {
		return err
	}
	pages, err := leaderboard.Build(snap, d.cfg.PageLen, d.cfg.Tiers, func(id string) (bool, error) {
		return d.ranked(ctx, id)
	})
	if err != nil {
		return err
	}

	var errs error
	for _, id := range d.boards[lobby] {
		errs = multierr.Append(errs, d.platform.DeleteWebhookMessage(ctx, hook, id))
	}
	ids := make([]string, 0, len(pages))
	for _, p := range pages {
		id, err := d.platform.ExecuteWebhook(ctx, hook, Message{Title: p.Title(), Description: p.Body()})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	d.boards[lobby] = slices.Clip(ids)
	return errs
}

func resultText(o gamelog.Outcome) string {
	switch o {
	case gamelog.Team1Win:
		return "Team 1 won"
	case gamelog.Team2Win:
		return "Team 2 won"
	case gamelog.Draw:
		return "Draw"
	default:
		return o.String()
	}
}

func roleOrNone(t leaderboard.Tier) string {
	if t.RoleID == "" {
		return "none"
	}
	return RoleMention(t.RoleID)
}
