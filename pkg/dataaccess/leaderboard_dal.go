package dataaccess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/shepherd/pkg/custom"
	"github.com/Jacobbrewer1/shepherd/pkg/dataaccess/monitoring"
	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const leaderboardDalName = "leaderboard_dal"

type LeaderboardDal interface {
	// AwardForClaim increments the user's daily, weekly and total counters by
	// one, atomically with flipping the claim's score_awarded guard. Returns
	// false without incrementing when the guard was already set.
	AwardForClaim(ctx context.Context, claimID primitive.ObjectID, guildID, userID string) (bool, error)

	// Revoke decrements the user's three counters by one, floored at zero.
	Revoke(ctx context.Context, guildID, userID string) error

	// GetLeaderboard returns the guild's entries with a non-zero counter for
	// the period, ordered by that counter descending then user ID ascending.
	GetLeaderboard(ctx context.Context, guildID string, period entities.Period) ([]*entities.LeaderboardEntry, error)

	// ResetDaily zeroes every daily counter and stamps the reset time.
	ResetDaily(ctx context.Context) error

	// ResetWeekly zeroes every weekly counter and stamps the reset time.
	ResetWeekly(ctx context.Context) error
}

type leaderboardDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewLeaderboardDal creates a new leaderboard data access layer.
func NewLeaderboardDal() LeaderboardDal {
	l := slog.Default().With(slog.String(logging.KeyDal, leaderboardDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &leaderboardDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func counterField(period entities.Period) string {
	switch period {
	case entities.PeriodDaily:
		return "daily_claims"
	case entities.PeriodWeekly:
		return "weekly_claims"
	default:
		return "total_claims"
	}
}

func (d *leaderboardDalImpl) AwardForClaim(ctx context.Context, claimID primitive.ObjectID, guildID, userID string) (bool, error) {
	claims := d.client.Database(mongoDatabase).Collection(collectionClaims)
	leaderboard := d.client.Database(mongoDatabase).Collection(collectionLeaderboard)

	monitoring.MongoTotalRequests.WithLabelValues(leaderboardDalName, "award_for_claim", mongoDatabase, collectionLeaderboard).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(leaderboardDalName, "award_for_claim", mongoDatabase, collectionLeaderboard))
	defer t.ObserveDuration()

	sess, err := d.client.StartSession()
	if err != nil {
		return false, fmt.Errorf("error starting session: %w", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		guard, err := claims.UpdateOne(sc,
			bson.M{"_id": claimID, "score_awarded": false},
			bson.M{"$set": bson.M{"score_awarded": true}},
		)
		if err != nil {
			return false, fmt.Errorf("error setting score guard: %w", err)
		} else if guard.ModifiedCount == 0 {
			// Already awarded by the other resolution path.
			return false, nil
		}

		opts := options.Update().SetUpsert(true)
		_, err = leaderboard.UpdateOne(sc,
			bson.M{"guild_id": guildID, "user_id": userID},
			bson.M{"$inc": bson.M{"daily_claims": 1, "weekly_claims": 1, "total_claims": 1}},
			opts,
		)
		if err != nil {
			return false, fmt.Errorf("error incrementing counters: %w", err)
		}
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("error awarding score: %w", err)
	}
	return res.(bool), nil
}

func (d *leaderboardDalImpl) Revoke(ctx context.Context, guildID, userID string) error {
	collection := d.client.Database(mongoDatabase).Collection(collectionLeaderboard)

	monitoring.MongoTotalRequests.WithLabelValues(leaderboardDalName, "revoke", mongoDatabase, collectionLeaderboard).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(leaderboardDalName, "revoke", mongoDatabase, collectionLeaderboard))
	defer t.ObserveDuration()

	floored := func(field string) bson.M {
		return bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$" + field, 1}}}}
	}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"daily_claims":  floored("daily_claims"),
			"weekly_claims": floored("weekly_claims"),
			"total_claims":  floored("total_claims"),
		}}},
	}

	if _, err := collection.UpdateOne(ctx, bson.M{"guild_id": guildID, "user_id": userID}, update); err != nil {
		return fmt.Errorf("error revoking score: %w", err)
	}
	return nil
}

func (d *leaderboardDalImpl) GetLeaderboard(ctx context.Context, guildID string, period entities.Period) ([]*entities.LeaderboardEntry, error) {
	collection := d.client.Database(mongoDatabase).Collection(collectionLeaderboard)

	monitoring.MongoTotalRequests.WithLabelValues(leaderboardDalName, "get_leaderboard", mongoDatabase, collectionLeaderboard).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(leaderboardDalName, "get_leaderboard", mongoDatabase, collectionLeaderboard))
	defer t.ObserveDuration()

	field := counterField(period)

	opts := options.Find().SetSort(bson.D{
		{Key: field, Value: -1},
		{Key: "user_id", Value: 1},
	})

	cur, err := collection.Find(ctx, bson.M{"guild_id": guildID, field: bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, fmt.Errorf("error getting leaderboard: %w", err)
	}

	var entries []*entities.LeaderboardEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding leaderboard: %w", err)
	}
	return entries, nil
}

func (d *leaderboardDalImpl) ResetDaily(ctx context.Context) error {
	return d.reset(ctx, "reset_daily", "daily_claims", "last_daily_reset")
}

func (d *leaderboardDalImpl) ResetWeekly(ctx context.Context) error {
	return d.reset(ctx, "reset_weekly", "weekly_claims", "last_weekly_reset")
}

func (d *leaderboardDalImpl) reset(ctx context.Context, op, counter, stamp string) error {
	collection := d.client.Database(mongoDatabase).Collection(collectionLeaderboard)

	monitoring.MongoTotalRequests.WithLabelValues(leaderboardDalName, op, mongoDatabase, collectionLeaderboard).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(leaderboardDalName, op, mongoDatabase, collectionLeaderboard))
	defer t.ObserveDuration()

	now := custom.Now()
	update := bson.M{"$set": bson.M{counter: 0, stamp: &now}}

	if _, err := collection.UpdateMany(ctx, bson.M{}, update); err != nil {
		return fmt.Errorf("error resetting %s: %w", counter, err)
	}
	return nil
}
