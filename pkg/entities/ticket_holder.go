package entities

import "github.com/Jacobbrewer1/shepherd/pkg/custom"

// TicketHolder records the end user a ticket channel was opened for. At most
// one row exists per channel; it is overwritten, never retained historically.
type TicketHolder struct {
	// ChannelID is the ID of the ticket channel.
	ChannelID string `json:"channel_id" bson:"channel_id"`

	// UserID is the ID of the ticket holder.
	UserID string `json:"user_id" bson:"user_id"`

	// SetBy is the ID of the staff member that recorded the holder.
	SetBy string `json:"set_by" bson:"set_by"`

	// SetAt is the time that the holder was recorded.
	SetAt custom.Datetime `json:"set_at" bson:"set_at"`
}
