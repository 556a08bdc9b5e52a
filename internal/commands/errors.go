package commands

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/DoyleJ11/queuebot/internal/balance"
	"github.com/DoyleJ11/queuebot/internal/hub"
	"github.com/DoyleJ11/queuebot/internal/leaderboard"
	"github.com/DoyleJ11/queuebot/internal/queue"
)

var ErrNotEnoughArguments = errors.New("not enough arguments")
var ErrBadArgument = errors.New("bad argument")
var ErrUnknownMember = errors.New("member not found")
var ErrUnknownChannel = errors.New("channel not found")

// NotFoundError names the argument that did not resolve to a member or
// channel.
type NotFoundError struct {
	Kind error
	Arg  string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%v: %s", e.Kind, e.Arg) }

func (e *NotFoundError) Unwrap() error { return e.Kind }

var replies = []struct {
	err  error
	text string
}{
	{queue.ErrFrozen, "The queue is frozen."},
	{queue.ErrAlreadyQueued, "Already in the queue."},
	{queue.ErrNotQueued, "Not in the queue."},
	{queue.ErrBadCapacity, fmt.Sprintf("Players per team must be between 1 and %d.", queue.MaxCapacity/2)},
	{balance.ErrInsufficientPlayers, "Not enough players for a game."},
	{hub.ErrUnknownLobby, "This channel is not a lobby."},
	{hub.ErrUnknownGame, "Game not found."},
	{hub.ErrGameAlreadyDecided, "Undo before modifying the game."},
	{hub.ErrSameTeam, "The players are in the same team."},
	{hub.ErrPlayerNotInMatch, "That player is not playing."},
	{hub.ErrNoGames, "No games have been played yet."},
	{hub.ErrBadRating, "Bad argument."},
	{hub.ErrBadOutcome, "Bad argument."},
	{leaderboard.ErrBadPage, "That page does not exist."},
	{ErrNotEnoughArguments, "Not enough arguments."},
	{ErrBadArgument, "Bad argument."},
}

// Describe turns an error into the reply shown to the requester. expected is
// false for errors outside the command taxonomy, such as storage failures.
func Describe(err error) (text string, expected bool) {
	errs := multierr.Errors(err)
	if len(errs) > 1 {
		lines := make([]string, 0, len(errs))
		expected = true
		for _, e := range errs {
			t, ok := Describe(e)
			lines = append(lines, t)
			expected = expected && ok
		}
		return strings.Join(lines, "\n"), expected
	}

	var nf *NotFoundError
	if errors.As(err, &nf) {
		if errors.Is(nf.Kind, ErrUnknownChannel) {
			return fmt.Sprintf("Channel %s not found.", nf.Arg), true
		}
		return fmt.Sprintf("Member %s not found.", nf.Arg), true
	}
	for _, r := range replies {
		if errors.Is(err, r.err) {
			return r.text, true
		}
	}
	return "Something went wrong, try again later.", false
}
