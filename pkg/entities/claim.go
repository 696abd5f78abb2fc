package entities

import (
	"github.com/Jacobbrewer1/shepherd/pkg/custom"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Claim is one entry in the append-only claim log. At most one claim per
// channel may have Completed == false at any time.
type Claim struct {
	// ID is the ID of the claim.
	ID primitive.ObjectID `json:"id" bson:"_id,omitempty"`

	// GuildID is the ID of the guild that the claim is in.
	GuildID string `json:"guild_id" bson:"guild_id"`

	// ChannelID is the ID of the claimed ticket channel.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// ClaimerID is the ID of the staff member that claimed the ticket.
	ClaimerID string `json:"claimer_id" bson:"claimer_id"`

	// ClaimedAt is the time that the claim was created.
	ClaimedAt custom.Datetime `json:"claimed_at" bson:"claimed_at"`

	// Completed is set exactly once, when the claim is resolved by any path.
	Completed bool `json:"completed" bson:"completed"`

	// TimeoutOccurred records whether a staff-side timeout resolved the claim.
	TimeoutOccurred bool `json:"timeout_occurred" bson:"timeout_occurred"`

	// ScoreAwarded guards the claimer's point; it transitions false to true
	// at most once per claim.
	ScoreAwarded bool `json:"score_awarded" bson:"score_awarded"`
}
