package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/stretchr/testify/require"
)

func leaderboardEntries(count int) []*entities.LeaderboardEntry {
	ents := make([]*entities.LeaderboardEntry, 0, count)
	for i := 0; i < count; i++ {
		ents = append(ents, &entities.LeaderboardEntry{
			GuildID:     "guild1",
			UserID:      fmt.Sprintf("user%02d", i),
			TotalClaims: count - i,
		})
	}
	return ents
}

func TestLeaderboardPage_Medals(t *testing.T) {
	page := leaderboardPage(leaderboardEntries(5), entities.PeriodTotal, 1)
	lines := strings.Split(strings.TrimSpace(page), "\n")
	require.Len(t, lines, 5)

	// The top three get medals; the rest get their rank.
	require.True(t, strings.HasPrefix(lines[0], "\U0001F947"))
	require.True(t, strings.HasPrefix(lines[1], "\U0001F948"))
	require.True(t, strings.HasPrefix(lines[2], "\U0001F949"))
	require.True(t, strings.HasPrefix(lines[3], "**4.**"))
	require.Contains(t, lines[0], "<@user00>")
	require.Contains(t, lines[0], "**5** claims")
}

func TestLeaderboardPage_Pagination(t *testing.T) {
	ents := leaderboardEntries(25)

	first := leaderboardPage(ents, entities.PeriodTotal, 1)
	require.Len(t, strings.Split(strings.TrimSpace(first), "\n"), leaderboardPageSize)

	// Ranks continue across pages.
	second := leaderboardPage(ents, entities.PeriodTotal, 2)
	require.Contains(t, second, "**11.**")
	require.Contains(t, second, "<@user10>")

	third := leaderboardPage(ents, entities.PeriodTotal, 3)
	require.Len(t, strings.Split(strings.TrimSpace(third), "\n"), 5)

	// A page past the end falls back to the last page.
	overflow := leaderboardPage(ents, entities.PeriodTotal, 9)
	require.Equal(t, third, overflow)
}

func TestLeaderboardPage_Empty(t *testing.T) {
	page := leaderboardPage(nil, entities.PeriodTotal, 1)
	require.Equal(t, "No claims recorded yet.", page)
}

func TestLeaderboardPages(t *testing.T) {
	require.Equal(t, 1, leaderboardPages(0))
	require.Equal(t, 1, leaderboardPages(10))
	require.Equal(t, 2, leaderboardPages(11))
	require.Equal(t, 3, leaderboardPages(25))
}

func TestLeaderboardEmbed(t *testing.T) {
	embed := leaderboardEmbed(leaderboardEntries(12), entities.PeriodTotal, 5)
	require.Equal(t, "Page 2 of 2", embed.Footer.Text)
	require.Contains(t, embed.Title, "Total")
}

func TestPeriodLabel(t *testing.T) {
	require.Equal(t, "Daily", periodLabel(entities.PeriodDaily))
	require.Equal(t, "Weekly", periodLabel(entities.PeriodWeekly))
	require.Equal(t, "Total", periodLabel(entities.PeriodTotal))
	require.Equal(t, "", periodLabel(entities.Period("")))
}
