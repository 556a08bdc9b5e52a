package leaderboard

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/DoyleJ11/queuebot/internal/rating"
)

var ErrBadPage = errors.New("page does not exist")

// Tier is a rank threshold. A player belongs to the highest tier whose
// Limit is at or below their mean.
type Tier struct {
	Name   string
	RoleID string
	Limit  float64
}

type Tiers []Tier

// NewTiers returns the tiers ordered by ascending limit.
func NewTiers(tiers ...Tier) Tiers {
	out := slices.Clone(tiers)
	slices.SortStableFunc(out, func(a, b Tier) int { return cmp.Compare(a.Limit, b.Limit) })
	return out
}

// For returns the tier a mean falls into.
func (t Tiers) For(mean float64) (Tier, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if mean >= t[i].Limit {
			return t[i], true
		}
	}
	return Tier{}, false
}

func (t Tiers) RoleIDs() []string {
	return lo.Map(t, func(tier Tier, _ int) string { return tier.RoleID })
}

type Row struct {
	Rank     int
	PlayerID string
	Record   rating.Record
	// Divider is set when this row starts a new tier on its page.
	Divider *Tier
}

type Page struct {
	Number int
	Total  int
	Rows   []Row
}

func (p Page) Title() string {
	return fmt.Sprintf("Leaderboard (%d/%d)", p.Number, p.Total)
}

func (p Page) Body() string {
	var b strings.Builder
	for i, r := range p.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		if r.Divider != nil {
			fmt.Fprintf(&b, "__**%s**__\n", r.Divider.Name)
		}
		fmt.Fprintf(&b, "%d: <@%s> - **%.0f** ± %.0f", r.Rank, r.PlayerID, r.Record.Mean, r.Record.Deviation())
	}
	return b.String()
}

// Eligible reports whether a player may appear on the leaderboard.
type Eligible func(playerID string) (bool, error)

// Build ranks every eligible player of snap by descending mean and splits
// them into pages of pageLen. Rank numbering continues across pages. Tier
// dividers are placed before the first player of each tier on a page, so a
// divider is never trailing and never adjacent to another divider. An empty
// snapshot yields no pages.
func Build(snap rating.Snapshot, pageLen int, tiers Tiers, eligible Eligible) ([]Page, error) {
	if pageLen <= 0 {
		return nil, fmt.Errorf("page length %d must be positive", pageLen)
	}

	ids := lo.Keys(snap)
	slices.Sort(ids)
	var ranked []string
	for _, id := range ids {
		if eligible != nil {
			ok, err := eligible(id)
			if err != nil {
				return nil, fmt.Errorf("checking %s: %w", id, err)
			}
			if !ok {
				continue
			}
		}
		ranked = append(ranked, id)
	}
	slices.SortStableFunc(ranked, func(a, b string) int {
		return cmp.Compare(snap[b].Mean, snap[a].Mean)
	})

	chunks := lo.Chunk(ranked, pageLen)
	pages := make([]Page, len(chunks))
	for n, chunk := range chunks {
		page := Page{Number: n + 1, Total: len(chunks), Rows: make([]Row, len(chunk))}
		var prev *Tier
		for i, id := range chunk {
			row := Row{Rank: n*pageLen + i + 1, PlayerID: id, Record: snap[id]}
			if tier, ok := tiers.For(row.Record.Mean); ok && (prev == nil || prev.Name != tier.Name) {
				row.Divider = &tier
				prev = &tier
			} else if !ok {
				prev = nil
			}
			page.Rows[i] = row
		}
		pages[n] = page
	}
	return pages, nil
}

// PageAt returns the 1-based page n.
func PageAt(pages []Page, n int) (Page, error) {
	if n < 1 || n > len(pages) {
		return Page{}, fmt.Errorf("%w: %d of %d", ErrBadPage, n, len(pages))
	}
	return pages[n-1], nil
}
