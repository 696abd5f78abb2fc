package entities

import "github.com/Jacobbrewer1/shepherd/pkg/custom"

// Period selects which leaderboard counter a query reads.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
	PeriodTotal  Period = "total"
)

// Valid reports whether the period is one of the known values.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodTotal:
		return true
	default:
		return false
	}
}

// Count returns the entry's counter for the period.
func (e *LeaderboardEntry) Count(p Period) int {
	switch p {
	case PeriodDaily:
		return e.DailyClaims
	case PeriodWeekly:
		return e.WeeklyClaims
	default:
		return e.TotalClaims
	}
}

// LeaderboardEntry is the per-guild, per-user claim counter row.
type LeaderboardEntry struct {
	// GuildID is the ID of the guild.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// UserID is the ID of the user.
	UserID string `json:"user_id" bson:"user_id"`

	// DailyClaims is the number of claims completed since the last daily reset.
	DailyClaims int `json:"daily_claims" bson:"daily_claims"`

	// WeeklyClaims is the number of claims completed since the last weekly reset.
	WeeklyClaims int `json:"weekly_claims" bson:"weekly_claims"`

	// TotalClaims is the all-time number of completed claims.
	TotalClaims int `json:"total_claims" bson:"total_claims"`

	// LastDailyReset is the time of the last daily reset.
	LastDailyReset custom.Datetime `json:"last_daily_reset" bson:"last_daily_reset"`

	// LastWeeklyReset is the time of the last weekly reset.
	LastWeeklyReset custom.Datetime `json:"last_weekly_reset" bson:"last_weekly_reset"`
}
