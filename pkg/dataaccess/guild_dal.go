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

const guildDalName = "guild_dal"

type GuildDal interface {
	// GetGuildByID gets a guild configuration by ID.
	GetGuildByID(ctx context.Context, id string) (*entities.Guild, error)

	// SetStaffRole sets the staff role, creating the guild row if needed.
	SetStaffRole(ctx context.Context, guildID, roleID string) error

	// SetOfficerRole sets the officer role, creating the guild row if needed.
	SetOfficerRole(ctx context.Context, guildID, roleID string) error

	// AddAllowedCategory adds a category to the guild's allowed set.
	AddAllowedCategory(ctx context.Context, guildID, categoryID string) error

	// RemoveAllowedCategory removes a category from the guild's allowed set.
	RemoveAllowedCategory(ctx context.Context, guildID, categoryID string) error

	// SetLeaderboardChannel sets the leaderboard broadcast channel.
	SetLeaderboardChannel(ctx context.Context, guildID, channelID string) error

	// ClearLeaderboardChannel removes the leaderboard broadcast channel.
	ClearLeaderboardChannel(ctx context.Context, guildID string) error

	// ListLeaderboardChannels returns every guild with a configured
	// leaderboard channel.
	ListLeaderboardChannels(ctx context.Context) ([]*entities.Guild, error)
}

type guildDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewGuildDal creates a new guild data access layer.
func NewGuildDal() GuildDal {
	l := slog.Default().With(slog.String(logging.KeyDal, guildDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &guildDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (g *guildDalImpl) GetGuildByID(ctx context.Context, id string) (*entities.Guild, error) {
	collection := g.client.Database(mongoDatabase).Collection(collectionGuilds)

	monitoring.MongoTotalRequests.WithLabelValues(guildDalName, "get_guild_by_id", mongoDatabase, collectionGuilds).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(guildDalName, "get_guild_by_id", mongoDatabase, collectionGuilds))
	defer t.ObserveDuration()

	guild := new(entities.Guild)
	err := collection.FindOne(ctx, bson.M{"id": id}).Decode(guild)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error getting guild: %w", err)
	}
	return guild, nil
}

// setField upserts a single configuration field, creating the guild row on
// first write.
func (g *guildDalImpl) setField(ctx context.Context, op, guildID string, update bson.M) error {
	collection := g.client.Database(mongoDatabase).Collection(collectionGuilds)

	monitoring.MongoTotalRequests.WithLabelValues(guildDalName, op, mongoDatabase, collectionGuilds).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(guildDalName, op, mongoDatabase, collectionGuilds))
	defer t.ObserveDuration()

	opts := options.Update().SetUpsert(true)
	if _, err := collection.UpdateOne(ctx, bson.M{"id": guildID}, update, opts); err != nil {
		return fmt.Errorf("error updating guild: %w", err)
	}
	return nil
}

func (g *guildDalImpl) SetStaffRole(ctx context.Context, guildID, roleID string) error {
	return g.setField(ctx, "set_staff_role", guildID, bson.M{"$set": bson.M{"staff_role_id": roleID}})
}

func (g *guildDalImpl) SetOfficerRole(ctx context.Context, guildID, roleID string) error {
	return g.setField(ctx, "set_officer_role", guildID, bson.M{"$set": bson.M{"officer_role_id": roleID}})
}

func (g *guildDalImpl) AddAllowedCategory(ctx context.Context, guildID, categoryID string) error {
	return g.setField(ctx, "add_allowed_category", guildID, bson.M{"$addToSet": bson.M{"allowed_category_ids": categoryID}})
}

func (g *guildDalImpl) RemoveAllowedCategory(ctx context.Context, guildID, categoryID string) error {
	return g.setField(ctx, "remove_allowed_category", guildID, bson.M{"$pull": bson.M{"allowed_category_ids": categoryID}})
}

func (g *guildDalImpl) SetLeaderboardChannel(ctx context.Context, guildID, channelID string) error {
	return g.setField(ctx, "set_leaderboard_channel", guildID, bson.M{"$set": bson.M{"leaderboard_channel_id": channelID}})
}

func (g *guildDalImpl) ClearLeaderboardChannel(ctx context.Context, guildID string) error {
	return g.setField(ctx, "clear_leaderboard_channel", guildID, bson.M{"$set": bson.M{"leaderboard_channel_id": ""}})
}

func (g *guildDalImpl) ListLeaderboardChannels(ctx context.Context) ([]*entities.Guild, error) {
	collection := g.client.Database(mongoDatabase).Collection(collectionGuilds)

	monitoring.MongoTotalRequests.WithLabelValues(guildDalName, "list_leaderboard_channels", mongoDatabase, collectionGuilds).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(guildDalName, "list_leaderboard_channels", mongoDatabase, collectionGuilds))
	defer t.ObserveDuration()

	cur, err := collection.Find(ctx, bson.M{"leaderboard_channel_id": bson.M{"$nin": bson.A{"", nil}}})
	if err != nil {
		return nil, fmt.Errorf("error listing leaderboard channels: %w", err)
	}

	var guilds []*entities.Guild
	if err := cur.All(ctx, &guilds); err != nil {
		return nil, fmt.Errorf("error decoding guilds: %w", err)
	}
	return guilds, nil
}
