package entities

import "github.com/Jacobbrewer1/shepherd/pkg/custom"

// ActiveTimeout is the persisted record driving a live timeout watcher. A row
// exists if and only if the channel's latest claim is still open; the two are
// created and removed together.
type ActiveTimeout struct {
	// ChannelID is the ID of the claimed channel.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// ClaimerID is the ID of the staff member holding the claim.
	ClaimerID string `json:"claimer_id" bson:"claimer_id"`

	// TicketHolderID is the ID of the ticket holder at claim time.
	TicketHolderID string `json:"ticket_holder_id" bson:"ticket_holder_id"`

	// ClaimTime is the time that the claim was created.
	ClaimTime custom.Datetime `json:"claim_time" bson:"claim_time"`

	// LastStaffMessage is the time of the claimer's most recent message.
	LastStaffMessage custom.Datetime `json:"last_staff_message" bson:"last_staff_message"`

	// LastHolderMessage is the time of the holder's most recent message.
	LastHolderMessage custom.Datetime `json:"last_holder_message" bson:"last_holder_message"`

	// OriginalPermissions is the serialized snapshot of the channel's
	// permission overwrites prior to the claim restricting them.
	OriginalPermissions []byte `json:"original_permissions" bson:"original_permissions"`

	// OfficerUsed records whether officer escalation already awarded the
	// claimer's point for this claim.
	OfficerUsed bool `json:"officer_used" bson:"officer_used"`
}
