package scoring

import (
	"context"
	"log/slog"
	"testing"

	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeLeaderboardDal struct {
	awarded map[primitive.ObjectID]bool
	entries []*entities.LeaderboardEntry
}

func newFakeLeaderboardDal(entries ...*entities.LeaderboardEntry) *fakeLeaderboardDal {
	return &fakeLeaderboardDal{
		awarded: make(map[primitive.ObjectID]bool),
		entries: entries,
	}
}

func (f *fakeLeaderboardDal) AwardForClaim(_ context.Context, claimID primitive.ObjectID, guildID, userID string) (bool, error) {
	if f.awarded[claimID] {
		return false, nil
	}
	f.awarded[claimID] = true

	for _, e := range f.entries {
		if e.GuildID == guildID && e.UserID == userID {
			e.DailyClaims++
			e.WeeklyClaims++
			e.TotalClaims++
			return true, nil
		}
	}
	f.entries = append(f.entries, &entities.LeaderboardEntry{
		GuildID:      guildID,
		UserID:       userID,
		DailyClaims:  1,
		WeeklyClaims: 1,
		TotalClaims:  1,
	})
	return true, nil
}

func (f *fakeLeaderboardDal) Revoke(_ context.Context, guildID, userID string) error {
	for _, e := range f.entries {
		if e.GuildID != guildID || e.UserID != userID {
			continue
		}
		if e.DailyClaims > 0 {
			e.DailyClaims--
		}
		if e.WeeklyClaims > 0 {
			e.WeeklyClaims--
		}
		if e.TotalClaims > 0 {
			e.TotalClaims--
		}
	}
	return nil
}

func (f *fakeLeaderboardDal) GetLeaderboard(_ context.Context, guildID string, period entities.Period) ([]*entities.LeaderboardEntry, error) {
	out := make([]*entities.LeaderboardEntry, 0, len(f.entries))
	for _, e := range f.entries {
		if e.GuildID == guildID && e.Count(period) > 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLeaderboardDal) ResetDaily(_ context.Context) error {
	for _, e := range f.entries {
		e.DailyClaims = 0
	}
	return nil
}

func (f *fakeLeaderboardDal) ResetWeekly(_ context.Context) error {
	for _, e := range f.entries {
		e.WeeklyClaims = 0
	}
	return nil
}

func TestEngine_AwardOnce(t *testing.T) {
	dal := newFakeLeaderboardDal()
	e := NewEngine(slog.Default(), dal)

	claim := &entities.Claim{
		ID:        primitive.NewObjectID(),
		GuildID:   "guild1",
		ChannelID: "channel1",
		ClaimerID: "user1",
	}

	awarded, err := e.Award(context.Background(), claim)
	require.NoError(t, err)
	require.True(t, awarded)

	// A second award for the same claim must not pay out again.
	awarded, err = e.Award(context.Background(), claim)
	require.NoError(t, err)
	require.False(t, awarded)

	ents, err := e.Leaderboard(context.Background(), "guild1", entities.PeriodTotal)
	require.NoError(t, err)
	require.Len(t, ents, 1)
	require.Equal(t, 1, ents[0].TotalClaims)
}

func TestEngine_RevokeFloorsAtZero(t *testing.T) {
	dal := newFakeLeaderboardDal(&entities.LeaderboardEntry{
		GuildID:     "guild1",
		UserID:      "user1",
		TotalClaims: 1,
	})
	e := NewEngine(slog.Default(), dal)

	require.NoError(t, e.Revoke(context.Background(), "guild1", "user1"))
	require.NoError(t, e.Revoke(context.Background(), "guild1", "user1"))

	require.Equal(t, 0, dal.entries[0].TotalClaims)
	require.Equal(t, 0, dal.entries[0].DailyClaims)
}

func TestEngine_LeaderboardOrdering(t *testing.T) {
	dal := newFakeLeaderboardDal(
		&entities.LeaderboardEntry{GuildID: "guild1", UserID: "userC", WeeklyClaims: 3},
		&entities.LeaderboardEntry{GuildID: "guild1", UserID: "userB", WeeklyClaims: 5},
		&entities.LeaderboardEntry{GuildID: "guild1", UserID: "userA", WeeklyClaims: 3},
		&entities.LeaderboardEntry{GuildID: "guild1", UserID: "userD", WeeklyClaims: 0},
		&entities.LeaderboardEntry{GuildID: "guild2", UserID: "userE", WeeklyClaims: 9},
	)
	e := NewEngine(slog.Default(), dal)

	ents, err := e.Leaderboard(context.Background(), "guild1", entities.PeriodWeekly)
	require.NoError(t, err)

	got := make([]string, 0, len(ents))
	for _, ent := range ents {
		got = append(got, ent.UserID)
	}

	// Count descending, ties broken by user ID ascending, zero counts and
	// other guilds excluded.
	require.Equal(t, []string{"userB", "userA", "userC"}, got)
}

func TestEngine_LeaderboardInvalidPeriod(t *testing.T) {
	e := NewEngine(slog.Default(), newFakeLeaderboardDal())

	_, err := e.Leaderboard(context.Background(), "guild1", entities.Period("fortnightly"))
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestEngine_Resets(t *testing.T) {
	dal := newFakeLeaderboardDal(&entities.LeaderboardEntry{
		GuildID:      "guild1",
		UserID:       "user1",
		DailyClaims:  2,
		WeeklyClaims: 4,
		TotalClaims:  9,
	})
	e := NewEngine(slog.Default(), dal)

	require.NoError(t, e.ResetDaily(context.Background()))
	require.Equal(t, 0, dal.entries[0].DailyClaims)
	require.Equal(t, 4, dal.entries[0].WeeklyClaims)

	require.NoError(t, e.ResetWeekly(context.Background()))
	require.Equal(t, 0, dal.entries[0].WeeklyClaims)
	require.Equal(t, 9, dal.entries[0].TotalClaims)
}
