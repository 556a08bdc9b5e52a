package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OpGameStarted tells other instances that players are now in a match and
// must leave every queue.
const OpGameStarted = "GAME_STARTED"

var ErrUnknownOp = errors.New("unknown bridge op")
var ErrMalformed = errors.New("malformed bridge message")

type envelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}

type GameStarted struct {
	Players []string `json:"players"`
}

// EncodeGameStarted renders the message posted in the bridge channel.
func EncodeGameStarted(players []string) (string, error) {
	if players == nil {
		players = []string{}
	}
	d, err := json.Marshal(GameStarted{Players: players})
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(envelope{T: OpGameStarted, D: d})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a bridge channel message.
func Decode(content string) (GameStarted, error) {
	var env envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return GameStarted{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.T == "" || len(env.D) == 0 {
		return GameStarted{}, fmt.Errorf("%w: missing t or d", ErrMalformed)
	}
	switch env.T {
	case OpGameStarted:
		var gs GameStarted
		if err := json.Unmarshal(env.D, &gs); err != nil {
			return GameStarted{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return gs, nil
	default:
		return GameStarted{}, fmt.Errorf("%w: %q", ErrUnknownOp, env.T)
	}
}
