package dataaccess

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDB is the Mongo client. This is a connection pool.
var MongoDB *mongo.Client

const mongoDatabase = "shepherd"

const (
	collectionGuilds        = "guilds"
	collectionClaims        = "claims"
	collectionTicketHolders = "ticket_holders"
	collectionTimeouts      = "active_timeouts"
	collectionLeaderboard   = "leaderboard"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrClaimExists is returned by OpenClaim when the channel already has an
	// open claim.
	ErrClaimExists = errors.New("channel already has an open claim")

	// ErrNoOpenClaim is returned by ResolveOpenClaim when another path
	// resolved the claim first.
	ErrNoOpenClaim = errors.New("channel has no open claim")
)
