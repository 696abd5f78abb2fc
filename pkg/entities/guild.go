package entities

// Guild is the claim configuration for a guild. It is created lazily on the
// first configuration write and never deleted.
type Guild struct {
	// ID is the ID of the guild.
	ID string `json:"id" bson:"id"`

	// StaffRoleID is the ID of the role allowed to claim tickets.
	StaffRoleID string `json:"staff_role_id" bson:"staff_role_id"`

	// OfficerRoleID is the ID of the role invited on escalation.
	OfficerRoleID string `json:"officer_role_id" bson:"officer_role_id"`

	// AllowedCategoryIDs is the set of category IDs that claim commands are
	// restricted to. An empty set means no category restriction.
	AllowedCategoryIDs []string `json:"allowed_category_ids" bson:"allowed_category_ids"`

	// LeaderboardChannelID is the channel that receives the daily leaderboard
	// broadcast. Empty when no channel is configured.
	LeaderboardChannelID string `json:"leaderboard_channel_id" bson:"leaderboard_channel_id"`
}

// CategoryAllowed reports whether the given category passes the guild's
// category restriction.
func (g *Guild) CategoryAllowed(categoryID string) bool {
	if len(g.AllowedCategoryIDs) == 0 {
		return true
	}
	for _, id := range g.AllowedCategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}
