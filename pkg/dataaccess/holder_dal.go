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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const holderDalName = "holder_dal"

type HolderDal interface {
	// SetHolder upserts the channel's ticket holder.
	SetHolder(ctx context.Context, holder *entities.TicketHolder) error

	// GetHolder returns the channel's ticket holder, or ErrNotFound.
	GetHolder(ctx context.Context, channelID string) (*entities.TicketHolder, error)
}

type holderDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewHolderDal creates a new ticket holder data access layer.
func NewHolderDal() HolderDal {
	l := slog.Default().With(slog.String(logging.KeyDal, holderDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &holderDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *holderDalImpl) SetHolder(ctx context.Context, holder *entities.TicketHolder) error {
	collection := d.client.Database(mongoDatabase).Collection(collectionTicketHolders)

	monitoring.MongoTotalRequests.WithLabelValues(holderDalName, "set_holder", mongoDatabase, collectionTicketHolders).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(holderDalName, "set_holder", mongoDatabase, collectionTicketHolders))
	defer t.ObserveDuration()

	opts := options.Replace().SetUpsert(true)
	if _, err := collection.ReplaceOne(ctx, bson.M{"channel_id": holder.ChannelID}, holder, opts); err != nil {
		return fmt.Errorf("error setting ticket holder: %w", err)
	}
	return nil
}

func (d *holderDalImpl) GetHolder(ctx context.Context, channelID string) (*entities.TicketHolder, error) {
	collection := d.client.Database(mongoDatabase).Collection(collectionTicketHolders)

	monitoring.MongoTotalRequests.WithLabelValues(holderDalName, "get_holder", mongoDatabase, collectionTicketHolders).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(holderDalName, "get_holder", mongoDatabase, collectionTicketHolders))
	defer t.ObserveDuration()

	holder := new(entities.TicketHolder)
	err := collection.FindOne(ctx, bson.M{"channel_id": channelID}).Decode(holder)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting ticket holder: %w", err)
	}
	return holder, nil
}
