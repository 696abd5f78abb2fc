package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Jacobbrewer1/shepherd/pkg/dataaccess"
	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
)

// ErrInvalidPeriod is returned when a leaderboard period is not one of the
// known values.
var ErrInvalidPeriod = errors.New("invalid leaderboard period")

// Engine awards, revokes and ranks claim scores.
type Engine struct {
	// l is the logger.
	l *slog.Logger

	// dal is the leaderboard data access layer.
	dal dataaccess.LeaderboardDal
}

// NewEngine creates a new scoring engine.
func NewEngine(l *slog.Logger, dal dataaccess.LeaderboardDal) *Engine {
	return &Engine{
		l:   l.With(slog.String(logging.KeyComponent, "scoring")),
		dal: dal,
	}
}

// Award credits the claimer for the given claim. Each claim pays out at most
// once; a second award for the same claim is a no-op and reports false.
func (e *Engine) Award(ctx context.Context, claim *entities.Claim) (bool, error) {
	awarded, err := e.dal.AwardForClaim(ctx, claim.ID, claim.GuildID, claim.ClaimerID)
	if err != nil {
		return false, fmt.Errorf("error awarding claim: %w", err)
	}

	if !awarded {
		e.l.Debug("Claim already scored, skipping award",
			slog.String(logging.KeyChannel, claim.ChannelID),
			slog.String(logging.KeyUser, claim.ClaimerID))
		return false, nil
	}

	e.l.Info("Awarded claim point",
		slog.String(logging.KeyGuild, claim.GuildID),
		slog.String(logging.KeyChannel, claim.ChannelID),
		slog.String(logging.KeyUser, claim.ClaimerID))
	return true, nil
}

// Revoke removes a point from the user across all counters, flooring at zero.
func (e *Engine) Revoke(ctx context.Context, guildID, userID string) error {
	if err := e.dal.Revoke(ctx, guildID, userID); err != nil {
		return fmt.Errorf("error revoking point: %w", err)
	}
	return nil
}

// Leaderboard returns the guild's entries for the period, ordered by count
// descending with ties broken by user ID ascending. Entries with a zero count
// for the period are excluded.
func (e *Engine) Leaderboard(ctx context.Context, guildID string, period entities.Period) ([]*entities.LeaderboardEntry, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	ents, err := e.dal.GetLeaderboard(ctx, guildID, period)
	if err != nil {
		return nil, fmt.Errorf("error getting leaderboard: %w", err)
	}

	// The store sorts already; sorting again keeps the ordering contract
	// independent of the backing query.
	sort.SliceStable(ents, func(i, j int) bool {
		ci, cj := ents[i].Count(period), ents[j].Count(period)
		if ci != cj {
			return ci > cj
		}
		return ents[i].UserID < ents[j].UserID
	})
	return ents, nil
}

// ResetDaily zeroes every daily counter.
func (e *Engine) ResetDaily(ctx context.Context) error {
	if err := e.dal.ResetDaily(ctx); err != nil {
		return fmt.Errorf("error resetting daily counters: %w", err)
	}
	e.l.Info("Daily leaderboard counters reset")
	return nil
}

// ResetWeekly zeroes every weekly counter.
func (e *Engine) ResetWeekly(ctx context.Context) error {
	if err := e.dal.ResetWeekly(ctx); err != nil {
		return fmt.Errorf("error resetting weekly counters: %w", err)
	}
	e.l.Info("Weekly leaderboard counters reset")
	return nil
}
