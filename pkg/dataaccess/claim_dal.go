package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jacobbrewer1/shepherd/pkg/dataaccess/monitoring"
	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const claimDalName = "claim_dal"

// Resolution is the outcome of resolving a channel's open claim. It carries
// the claim as it stood before completion together with the ActiveTimeout row
// that was removed alongside it.
type Resolution struct {
	// Claim is the resolved claim, prior to the completed flag being set.
	Claim *entities.Claim

	// Timeout is the removed ActiveTimeout row. Nil if the row was already
	// gone, which indicates a consistency fault that has now been repaired.
	Timeout *entities.ActiveTimeout
}

type ClaimDal interface {
	// OpenClaim inserts a claim row and its ActiveTimeout counterpart in a
	// single transaction. Returns ErrClaimExists when the channel already has
	// an open claim.
	OpenClaim(ctx context.Context, claim *entities.Claim, timeout *entities.ActiveTimeout) error

	// GetOpenClaim returns the channel's open claim, or ErrNotFound.
	GetOpenClaim(ctx context.Context, channelID string) (*entities.Claim, error)

	// ResolveOpenClaim marks the channel's open claim completed and removes
	// the ActiveTimeout row in a single transaction. Returns ErrNoOpenClaim
	// when another path resolved the claim first.
	ResolveOpenClaim(ctx context.Context, channelID string, timeoutOccurred bool) (*Resolution, error)
}

type claimDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewClaimDal creates a new claim data access layer.
func NewClaimDal() ClaimDal {
	l := slog.Default().With(slog.String(logging.KeyDal, claimDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &claimDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *claimDalImpl) OpenClaim(ctx context.Context, claim *entities.Claim, timeout *entities.ActiveTimeout) error {
	claims := d.client.Database(mongoDatabase).Collection(collectionClaims)
	timeouts := d.client.Database(mongoDatabase).Collection(collectionTimeouts)

	monitoring.MongoTotalRequests.WithLabelValues(claimDalName, "open_claim", mongoDatabase, collectionClaims).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(claimDalName, "open_claim", mongoDatabase, collectionClaims))
	defer t.ObserveDuration()

	sess, err := d.client.StartSession()
	if err != nil {
		return fmt.Errorf("error starting session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		count, err := claims.CountDocuments(sc, bson.M{"channel_id": claim.ChannelID, "completed": false})
		if err != nil {
			return nil, fmt.Errorf("error counting open claims: %w", err)
		} else if count > 0 {
			return nil, ErrClaimExists
		}

		res, err := claims.InsertOne(sc, claim)
		if err != nil {
			return nil, fmt.Errorf("error inserting claim: %w", err)
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			claim.ID = id
		}

		opts := options.Replace().SetUpsert(true)
		if _, err := timeouts.ReplaceOne(sc, bson.M{"channel_id": timeout.ChannelID}, timeout, opts); err != nil {
			return nil, fmt.Errorf("error saving timeout: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, ErrClaimExists) {
		return ErrClaimExists
	} else if err != nil {
		return fmt.Errorf("error opening claim: %w", err)
	}
	return nil
}

func (d *claimDalImpl) GetOpenClaim(ctx context.Context, channelID string) (*entities.Claim, error) {
	collection := d.client.Database(mongoDatabase).Collection(collectionClaims)

	monitoring.MongoTotalRequests.WithLabelValues(claimDalName, "get_open_claim", mongoDatabase, collectionClaims).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(claimDalName, "get_open_claim", mongoDatabase, collectionClaims))
	defer t.ObserveDuration()

	opts := options.FindOne().SetSort(bson.M{"claimed_at": -1})

	claim := new(entities.Claim)
	err := collection.FindOne(ctx, bson.M{"channel_id": channelID, "completed": false}, opts).Decode(claim)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting open claim: %w", err)
	}
	return claim, nil
}

func (d *claimDalImpl) ResolveOpenClaim(ctx context.Context, channelID string, timeoutOccurred bool) (*Resolution, error) {
	claims := d.client.Database(mongoDatabase).Collection(collectionClaims)
	timeouts := d.client.Database(mongoDatabase).Collection(collectionTimeouts)

	monitoring.MongoTotalRequests.WithLabelValues(claimDalName, "resolve_open_claim", mongoDatabase, collectionClaims).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(claimDalName, "resolve_open_claim", mongoDatabase, collectionClaims))
	defer t.ObserveDuration()

	sess, err := d.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("error starting session: %w", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		opts := options.FindOneAndUpdate().SetSort(bson.M{"claimed_at": -1})

		claim := new(entities.Claim)
		err := claims.FindOneAndUpdate(sc,
			bson.M{"channel_id": channelID, "completed": false},
			bson.M{"$set": bson.M{"completed": true, "timeout_occurred": timeoutOccurred}},
			opts,
		).Decode(claim)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoOpenClaim
		} else if err != nil {
			return nil, fmt.Errorf("error completing claim: %w", err)
		}

		resolution := &Resolution{Claim: claim}

		timeout := new(entities.ActiveTimeout)
		err = timeouts.FindOne(sc, bson.M{"channel_id": channelID}).Decode(timeout)
		if err == nil {
			resolution.Timeout = timeout
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("error getting timeout: %w", err)
		}

		if _, err := timeouts.DeleteOne(sc, bson.M{"channel_id": channelID}); err != nil {
			return nil, fmt.Errorf("error removing timeout: %w", err)
		}
		return resolution, nil
	})
	if errors.Is(err, ErrNoOpenClaim) {
		return nil, ErrNoOpenClaim
	} else if err != nil {
		return nil, fmt.Errorf("error resolving claim: %w", err)
	}
	return res.(*Resolution), nil
}
