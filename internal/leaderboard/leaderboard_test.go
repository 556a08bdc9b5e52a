package leaderboard

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/queuebot/internal/rating"
)

func snapshot(means map[string]float64) rating.Snapshot {
	snap := rating.Snapshot{}
	for id, m := range means {
		snap[id] = rating.Record{Rating: rating.Rating{Mean: m, Variance: 25}}
	}
	return snap
}

func TestBuild_Pagination(t *testing.T) {
	means := map[string]float64{}
	for i := 0; i < 45; i++ {
		means[fmt.Sprintf("p%02d", i)] = float64(1000 + i)
	}
	pages, err := Build(snapshot(means), 20, nil, nil)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Len(t, pages[0].Rows, 20)
	assert.Len(t, pages[1].Rows, 20)
	assert.Len(t, pages[2].Rows, 5)
	assert.Equal(t, 1, pages[0].Rows[0].Rank)
	assert.Equal(t, "p44", pages[0].Rows[0].PlayerID)
	assert.Equal(t, 21, pages[1].Rows[0].Rank)
	assert.Equal(t, 45, pages[2].Rows[4].Rank)
	assert.Equal(t, "Leaderboard (2/3)", pages[1].Title())
}

func TestBuild_FiltersAndTiesByID(t *testing.T) {
	snap := snapshot(map[string]float64{"b": 10, "a": 10, "c": 30, "banned": 99})
	pages, err := Build(snap, 10, nil, func(id string) (bool, error) { return id != "banned", nil })
	require.NoError(t, err)
	require.Len(t, pages, 1)

	var got []string
	for _, r := range pages[0].Rows {
		got = append(got, r.PlayerID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestBuild_EligibleError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Build(snapshot(map[string]float64{"a": 1}), 10, nil, func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestBuild_EmptyHasNoPages(t *testing.T) {
	pages, err := Build(rating.Snapshot{}, 20, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, pages)

	_, err = PageAt(pages, 1)
	assert.ErrorIs(t, err, ErrBadPage)
}

func TestBuild_Dividers(t *testing.T) {
	tiers := NewTiers(
		Tier{Name: "Gold", RoleID: "r3", Limit: 2000},
		Tier{Name: "Bronze", RoleID: "r1", Limit: 1000},
		Tier{Name: "Silver", RoleID: "r2", Limit: 1500},
	)
	snap := snapshot(map[string]float64{
		"a": 2100, "b": 2050, "c": 1200, "d": 1100, "e": 500,
	})
	pages, err := Build(snap, 3, tiers, nil)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	names := func(p Page) []string {
		var out []string
		for _, r := range p.Rows {
			if r.Divider != nil {
				out = append(out, r.Divider.Name)
			} else {
				out = append(out, "")
			}
		}
		return out
	}
	// Silver has no players so no divider for it
	assert.Equal(t, []string{"Gold", "", "Bronze"}, names(pages[0]))
	// every page restates the tier of its first player
	assert.Equal(t, []string{"Bronze", ""}, names(pages[1]))

	assert.Equal(t, "__**Bronze**__\n4: <@d> - **1100** ± 10\n5: <@e> - **500** ± 10", pages[1].Body())
}

func TestTiers_For(t *testing.T) {
	tiers := NewTiers(Tier{Name: "High", Limit: 100}, Tier{Name: "Low", Limit: 0})
	tests := []struct {
		mean float64
		want string
		ok   bool
	}{
		{mean: 150, want: "High", ok: true},
		{mean: 100, want: "High", ok: true},
		{mean: 99.9, want: "Low", ok: true},
		{mean: -1, ok: false},
	}
	for _, tt := range tests {
		got, ok := tiers.For(tt.mean)
		assert.Equal(t, tt.ok, ok, "mean %v", tt.mean)
		assert.Equal(t, tt.want, got.Name, "mean %v", tt.mean)
	}
	assert.Equal(t, []string{"", ""}, tiers.RoleIDs())
}

func TestPageAt(t *testing.T) {
	pages := []Page{{Number: 1, Total: 2}, {Number: 2, Total: 2}}
	p, err := PageAt(pages, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Number)

	for _, n := range []int{0, 3, -1} {
		_, err := PageAt(pages, n)
		assert.ErrorIs(t, err, ErrBadPage)
	}
}
