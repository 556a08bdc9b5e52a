package commands

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/queuebot/internal/gamelog"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/leaderboard"
	"github.com/DoyleJ11/queuebot/internal/notify"
)

var (
	memberRef  = regexp.MustCompile(`^<@!?(\d+)>$`)
	channelRef = regexp.MustCompile(`^<#(\d+)>$`)
	snowflake  = regexp.MustCompile(`^\d+$`)
)

func say(text string) notify.Message { return notify.Message{Description: text} }

func (r *Router) ping(context.Context, Request, []string) (notify.Message, error) {
	return say("Pong!"), nil
}

func (r *Router) join(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	banned, err := r.hasRole(ctx, req.AuthorID, r.cfg.BannedRole)
	if err != nil || banned {
		return notify.Message{}, err
	}
	return notify.Message{}, r.hub.Join(ctx, req.ChannelID, req.AuthorID)
}

func (r *Router) forceJoin(ctx context.Context, req Request, args []string) (notify.Message, error) {
	members, err := r.members(ctx, args, 1)
	if err != nil {
		return notify.Message{}, err
	}
	return notify.Message{}, r.hub.ForceJoin(ctx, req.ChannelID, members)
}

func (r *Router) leave(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	return notify.Message{}, r.hub.Leave(ctx, req.ChannelID, req.AuthorID)
}

func (r *Router) forceLeave(ctx context.Context, req Request, args []string) (notify.Message, error) {
	members, err := r.members(ctx, args, 1)
	if err != nil {
		return notify.Message{}, err
	}
	return notify.Message{}, r.hub.ForceLeave(ctx, req.ChannelID, members)
}

func (r *Router) players(ctx context.Context, req Request, args []string) (notify.Message, error) {
	n, err := intArg(args, 0)
	if err != nil {
		return notify.Message{}, err
	}
	return notify.Message{}, r.hub.SetCapacity(ctx, req.ChannelID, 2*n)
}

func (r *Router) freeze(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	return notify.Message{}, r.hub.Freeze(ctx, req.ChannelID)
}

func (r *Router) unfreeze(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	return notify.Message{}, r.hub.Unfreeze(ctx, req.ChannelID)
}

func (r *Router) clear(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	_, err := r.hub.Clear(ctx, req.ChannelID)
	return notify.Message{}, err
}

func (r *Router) queue(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	q, err := r.hub.Queue(ctx, req.ChannelID)
	if err != nil {
		return notify.Message{}, err
	}
	lines := make([]string, len(q.Players))
	for i, p := range q.Players {
		lines[i] = notify.Mention(p)
	}
	return notify.Message{
		Title:       fmt.Sprintf("Queue [%d/%d]", len(q.Players), q.Capacity),
		Description: strings.Join(lines, "\n"),
	}, nil
}

func (r *Router) score(ctx context.Context, req Request, args []string) (notify.Message, error) {
	id, err := intArg(args, 0)
	if err != nil {
		return notify.Message{}, err
	}
	if len(args) < 2 {
		return notify.Message{}, ErrNotEnoughArguments
	}
	var outcome gamelog.Outcome
	switch strings.ToLower(args[1]) {
	case "1":
		outcome = gamelog.Team1Win
	case "2":
		outcome = gamelog.Team2Win
	case "draw", "d":
		outcome = gamelog.Draw
	default:
		return notify.Message{}, ErrBadArgument
	}
	_, err = r.hub.Score(ctx, req.ChannelID, id, outcome)
	return notify.Message{}, err
}

func (r *Router) cancel(ctx context.Context, req Request, args []string) (notify.Message, error) {
	id, err := intArg(args, 0)
	if err != nil {
		return notify.Message{}, err
	}
	_, err = r.hub.Cancel(ctx, req.ChannelID, id)
	return notify.Message{}, err
}

func (r *Router) undo(ctx context.Context, req Request, args []string) (notify.Message, error) {
	id, err := intArg(args, 0)
	if err != nil {
		return notify.Message{}, err
	}
	_, err = r.hub.Undo(ctx, req.ChannelID, id)
	return notify.Message{}, err
}

func (r *Router) rebalance(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	_, err := r.hub.Rebalance(ctx, req.ChannelID)
	return notify.Message{}, err
}

func (r *Router) swap(ctx context.Context, req Request, args []string) (notify.Message, error) {
	members, err := r.members(ctx, args, 2)
	if err != nil {
		return notify.Message{}, err
	}
	_, err = r.hub.Swap(ctx, req.ChannelID, members[0], members[1])
	return notify.Message{}, err
}

func (r *Router) gameList(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	games, err := r.hub.Games(ctx, req.ChannelID, r.cfg.GameList)
	if err != nil {
		return notify.Message{}, err
	}
	if len(games) == 0 {
		return notify.Message{}, hub.ErrNoGames
	}
	lines := make([]string, len(games))
	for i, g := range games {
		lines[i] = fmt.Sprintf("Game %d: %s", g.ID, g.Outcome)
	}
	return say(strings.Join(lines, "\n")), nil
}

func (r *Router) lastGame(ctx context.Context, req Request, _ []string) (notify.Message, error) {
	g, err := r.hub.LastGame(ctx, req.ChannelID)
	if err != nil {
		return notify.Message{}, err
	}
	return gameMessage(g), nil
}

func (r *Router) gameInfo(ctx context.Context, req Request, args []string) (notify.Message, error) {
	id, err := intArg(args, 0)
	if err != nil {
		return notify.Message{}, err
	}
	g, err := r.hub.Game(ctx, req.ChannelID, id)
	if err != nil {
		return notify.Message{}, err
	}
	return gameMessage(g), nil
}

func gameMessage(g gamelog.Game) notify.Message {
	team := func(players []string) string {
		lines := make([]string, len(players))
		for i, p := range players {
			lines[i] = notify.Mention(p)
		}
		return strings.Join(lines, "\n")
	}
	return notify.Message{
		Title:       fmt.Sprintf("Game %d", g.ID),
		Description: fmt.Sprintf("**%s**\n\nTeam 1:\n%s\n\nTeam 2:\n%s", g.Outcome, team(g.Team1), team(g.Team2)),
		Timestamp:   g.CreatedAt,
	}
}

func (r *Router) setRating(ctx context.Context, _ Request, args []string) (notify.Message, error) {
	members, err := r.members(ctx, args[:min(len(args), 1)], 1)
	if err != nil {
		return notify.Message{}, err
	}
	if len(args) < 2 {
		return notify.Message{}, ErrNotEnoughArguments
	}
	mean, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return notify.Message{}, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	if err := r.hub.SetSeed(ctx, members[0], mean); err != nil {
		return notify.Message{}, err
	}
	return say(fmt.Sprintf("Rating of %s set to %.0f.", notify.Mention(members[0]), mean)), nil
}

// info shows the author's record in a lobby, the current channel unless
// another lobby channel is given.
func (r *Router) info(ctx context.Context, req Request, args []string) (notify.Message, error) {
	lobby := req.ChannelID
	if len(args) > 0 {
		ch, err := channel(args[0])
		if err != nil {
			return notify.Message{}, err
		}
		lobby = ch
	}
	p, err := r.hub.Player(ctx, lobby, req.AuthorID)
	if err != nil {
		return notify.Message{}, err
	}
	if p.Rank == 0 {
		return say("No info yet, play more!"), nil
	}
	rec := p.Record
	return say(fmt.Sprintf("Rating: %.0f ± %.0f\nRank: %d\nWins: %d\nLosses: %d\nDraws: %d",
		rec.Mean, rec.Deviation(), p.Rank, rec.Wins, rec.Losses, rec.Draws)), nil
}

func (r *Router) leaderboard(ctx context.Context, req Request, args []string) (notify.Message, error) {
	page := 1
	if len(args) > 0 {
		n, err := intArg(args, 0)
		if err != nil {
			return notify.Message{}, err
		}
		page = n
	}
	snap, err := r.hub.Ratings(ctx, req.ChannelID)
	if err != nil {
		return notify.Message{}, err
	}
	pages, err := leaderboard.Build(snap, r.cfg.PageLen, r.cfg.Tiers, func(id string) (bool, error) {
		return r.hasRole(ctx, id, r.cfg.RankedRole)
	})
	if err != nil {
		return notify.Message{}, err
	}
	p, err := leaderboard.PageAt(pages, page)
	if err != nil {
		return notify.Message{}, err
	}
	return notify.Message{Title: p.Title(), Description: p.Body()}, nil
}

func (r *Router) expire(ctx context.Context, req Request, args []string) (notify.Message, error) {
	var d time.Duration
	if len(args) > 0 {
		n, err := intArg(args, 0)
		if err != nil {
			return notify.Message{}, err
		}
		d = time.Duration(n) * time.Minute
	}
	at, err := r.hub.Expire(ctx, req.ChannelID, req.AuthorID, d)
	if err != nil {
		return notify.Message{}, err
	}
	return say(fmt.Sprintf("%s will stay in the queue until <t:%d:t>.", notify.Mention(req.AuthorID), at.Unix())), nil
}

// members resolves at least n member arguments to user ids.
func (r *Router) members(ctx context.Context, args []string, n int) ([]string, error) {
	if len(args) < n {
		return nil, ErrNotEnoughArguments
	}
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id := arg
		if m := memberRef.FindStringSubmatch(arg); m != nil {
			id = m[1]
		} else if !snowflake.MatchString(arg) {
			return nil, &NotFoundError{Kind: ErrUnknownMember, Arg: arg}
		}
		ok, err := r.dir.IsMember(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &NotFoundError{Kind: ErrUnknownMember, Arg: arg}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func channel(arg string) (string, error) {
	if m := channelRef.FindStringSubmatch(arg); m != nil {
		return m[1], nil
	}
	if snowflake.MatchString(arg) {
		return arg, nil
	}
	return "", &NotFoundError{Kind: ErrUnknownChannel, Arg: arg}
}

// intArg parses args[i] as a positive integer.
func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, ErrNotEnoughArguments
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadArgument, args[i])
	}
	return n, nil
}
