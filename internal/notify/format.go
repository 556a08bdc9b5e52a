package notify

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

func Mention(userID string) string     { return "<@" + userID + ">" }
func RoleMention(roleID string) string { return "<@&" + roleID + ">" }
func Channel(channelID string) string  { return "<#" + channelID + ">" }

func mentions(users []string) string {
	return strings.Join(lo.Map(users, func(u string, _ int) string { return Mention(u) }), " ")
}

func counter(players, capacity int) string {
	return fmt.Sprintf("[%d/%d]", players, capacity)
}

// Percent renders a match quality such as 0.5 as "50%".
func Percent(q float64) string {
	return fmt.Sprintf("%.0f%%", q*100)
}

// gameRole names the role shared by every player of a game; team is 0 for
// the game role and 1 or 2 for a team role.
func gameRole(lobbyName string, gameID, team int) string {
	base := fmt.Sprintf("%s Game %d", lobbyName, gameID)
	if team == 0 {
		return base
	}
	return fmt.Sprintf("%s Team %d", base, team)
}

// signed renders old + delta = new with the sign of the delta.
func signed(before, after float64) string {
	if after >= before {
		return fmt.Sprintf("%.0f + %.0f = %.0f", before, after-before, after)
	}
	return fmt.Sprintf("%.0f - %.0f = %.0f", before, before-after, after)
}
