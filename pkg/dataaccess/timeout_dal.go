package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/shepherd/pkg/custom"
	"github.com/Jacobbrewer1/shepherd/pkg/dataaccess/monitoring"
	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const timeoutDalName = "timeout_dal"

type TimeoutDal interface {
	// GetTimeout returns the channel's ActiveTimeout row, or ErrNotFound.
	GetTimeout(ctx context.Context, channelID string) (*entities.ActiveTimeout, error)

	// ListTimeouts returns every ActiveTimeout row. Used by the startup
	// recovery pass.
	ListTimeouts(ctx context.Context) ([]*entities.ActiveTimeout, error)

	// RemoveTimeout deletes the channel's ActiveTimeout row. Used only to
	// prune stale rows whose channel no longer exists; live rows are removed
	// through ClaimDal.ResolveOpenClaim.
	RemoveTimeout(ctx context.Context, channelID string) error

	// MarkOfficerUsed flags that officer escalation awarded the claimer's
	// point for the channel's current claim.
	MarkOfficerUsed(ctx context.Context, channelID string) error

	// UpdateActivity stamps the author's last-message time if the author is
	// the recorded claimer or holder of the channel's open claim.
	UpdateActivity(ctx context.Context, channelID, userID string, at custom.Datetime) error
}

type timeoutDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewTimeoutDal creates a new timeout data access layer.
func NewTimeoutDal() TimeoutDal {
	l := slog.Default().With(slog.String(logging.KeyDal, timeoutDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &timeoutDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *timeoutDalImpl) GetTimeout(ctx context.Context, channelID string) (*entities.ActiveTimeout, error) {
	collection := d.client.Database(mongoDatabase).Collection(collectionTimeouts)

	monitoring.MongoTotalRequests.WithLabelValues(timeoutDalName, "get_timeout", mongoDatabase, collectionTimeouts).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(timeoutDalName, "get_timeout", mongoDatabase, collectionTimeouts))
	defer t.ObserveDuration()

	timeout := new(entities.ActiveTimeout)
	err := collection.FindOne(ctx, bson.M{"channel_id": channelID}).Decode(timeout)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting timeout: %w", err)
	}
	return timeout, nil
}

func (d *timeoutDalImpl) ListTimeouts(ctx context.Context) ([]*entities.ActiveTimeout, error) {
	collection := d.client.Database(mongoDatabase).Collection(collectionTimeouts)

	monitoring.MongoTotalRequests.WithLabelValues(timeoutDalName, "list_timeouts", mongoDatabase, collectionTimeouts).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(timeoutDalName, "list_timeouts", mongoDatabase, collectionTimeouts))
	defer t.ObserveDuration()

	cur, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing timeouts: %w", err)
	}

	var timeouts []*entities.ActiveTimeout
	if err := cur.All(ctx, &timeouts); err != nil {
		return nil, fmt.Errorf("error decoding timeouts: %w", err)
	}
	return timeouts, nil
}

func (d *timeoutDalImpl) RemoveTimeout(ctx context.Context, channelID string) error {
	collection := d.client.Database(mongoDatabase).Collection(collectionTimeouts)

	monitoring.MongoTotalRequests.WithLabelValues(timeoutDalName, "remove_timeout", mongoDatabase, collectionTimeouts).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(timeoutDalName, "remove_timeout", mongoDatabase, collectionTimeouts))
	defer t.ObserveDuration()

	if _, err := collection.DeleteOne(ctx, bson.M{"channel_id": channelID}); err != nil {
		return fmt.Errorf("error removing timeout: %w", err)
	}
	return nil
}

func (d *timeoutDalImpl) MarkOfficerUsed(ctx context.Context, channelID string) error {
	collection := d.client.Database(mongoDatabase).Collection(collectionTimeouts)

	monitoring.MongoTotalRequests.WithLabelValues(timeoutDalName, "mark_officer_used", mongoDatabase, collectionTimeouts).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(timeoutDalName, "mark_officer_used", mongoDatabase, collectionTimeouts))
	defer t.ObserveDuration()

	res, err := collection.UpdateOne(ctx, bson.M{"channel_id": channelID}, bson.M{"$set": bson.M{"officer_used": true}})
	if err != nil {
		return fmt.Errorf("error marking officer used: %w", err)
	} else if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *timeoutDalImpl) UpdateActivity(ctx context.Context, channelID, userID string, at custom.Datetime) error {
	collection := d.client.Database(mongoDatabase).Collection(collectionTimeouts)

	monitoring.MongoTotalRequests.WithLabelValues(timeoutDalName, "update_activity", mongoDatabase, collectionTimeouts).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(timeoutDalName, "update_activity", mongoDatabase, collectionTimeouts))
	defer t.ObserveDuration()

	// Two conditional updates; at most one can match. Authors that are
	// neither the claimer nor the holder are ignored.
	if _, err := collection.UpdateOne(ctx,
		bson.M{"channel_id": channelID, "claimer_id": userID},
		bson.M{"$set": bson.M{"last_staff_message": &at}},
	); err != nil {
		return fmt.Errorf("error updating staff activity: %w", err)
	}

	if _, err := collection.UpdateOne(ctx,
		bson.M{"channel_id": channelID, "ticket_holder_id": userID, "claimer_id": bson.M{"$ne": userID}},
		bson.M{"$set": bson.M{"last_holder_message": &at}},
	); err != nil {
		return fmt.Errorf("error updating holder activity: %w", err)
	}
	return nil
}
