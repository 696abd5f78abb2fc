package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"golang.org/x/time/rate"
)

// overrideMask is the portion of a permission overwrite that claims manage:
// view, send-message and read-history.
const overrideMask = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory

// Override is one principal's snapshotted permission triple.
type Override struct {
	// Type distinguishes role and member principals.
	Type discordgo.PermissionOverwriteType `json:"type"`

	// Allow is the allowed portion of the triple.
	Allow int64 `json:"allow"`

	// Deny is the denied portion of the triple.
	Deny int64 `json:"deny"`
}

// Snapshot is a channel's original permission overwrites, keyed by principal
// ID, masked to the managed triple.
type Snapshot map[string]Override

// Discord is the slice of the session the manager needs.
type Discord interface {
	// Channel gets a channel by ID.
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// ChannelPermissionSet creates or updates a permission overwrite.
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error

	// ChannelPermissionDelete removes a permission overwrite.
	ChannelPermissionDelete(channelID, targetID string, options ...discordgo.RequestOption) error
}

// Manager captures, restricts and restores channel permission overwrites.
type Manager struct {
	// l is the logger.
	l *slog.Logger

	// s is the discord session.
	s Discord

	// limiter throttles overwrite mutations; Discord rate-limits the
	// permission routes per channel.
	limiter *rate.Limiter
}

// NewManager creates a new permission manager.
func NewManager(l *slog.Logger, s Discord) *Manager {
	return &Manager{
		l:       l.With(slog.String(logging.KeyComponent, "permissions")),
		s:       s,
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 5),
	}
}

// Take captures the channel's current overwrites as a serialized snapshot.
func (m *Manager) Take(channel *discordgo.Channel) ([]byte, error) {
	snap := make(Snapshot, len(channel.PermissionOverwrites))
	for _, ow := range channel.PermissionOverwrites {
		snap[ow.ID] = Override{
			Type:  ow.Type,
			Allow: ow.Allow & overrideMask,
			Deny:  ow.Deny & overrideMask,
		}
	}

	blob, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("error marshalling snapshot: %w", err)
	}
	return blob, nil
}

func (m *Manager) set(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("error waiting for rate limiter: %w", err)
	}
	if err := m.s.ChannelPermissionSet(channelID, targetID, targetType, allow, deny); err != nil {
		return fmt.Errorf("error setting permissions for %s: %w", targetID, err)
	}
	return nil
}

// Restrict narrows the channel to the claimer and the holder: the staff role
// and @everyone lose send access but keep view, the claimer and the holder
// gain send and view.
func (m *Manager) Restrict(ctx context.Context, channel *discordgo.Channel, guildID, holderID, claimerID, staffRoleID string) error {
	// The @everyone principal shares the guild's ID.
	if err := m.set(ctx, channel.ID, guildID, discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionViewChannel, discordgo.PermissionSendMessages); err != nil {
		return err
	}

	if err := m.set(ctx, channel.ID, staffRoleID, discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionViewChannel, discordgo.PermissionSendMessages); err != nil {
		return err
	}

	for _, memberID := range []string{holderID, claimerID} {
		if err := m.set(ctx, channel.ID, memberID, discordgo.PermissionOverwriteTypeMember,
			discordgo.PermissionViewChannel|discordgo.PermissionSendMessages, 0); err != nil {
			return err
		}
	}
	return nil
}

// GrantOfficer gives the officer role send and view access to the channel.
func (m *Manager) GrantOfficer(ctx context.Context, channelID, officerRoleID string) error {
	return m.set(ctx, channelID, officerRoleID, discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionViewChannel|discordgo.PermissionSendMessages, 0)
}

// Restore reapplies a snapshot to the channel. Principals present in the
// snapshot get their triple back; overwrites on principals the snapshot does
// not know are cleared. Restore is idempotent and tolerates the channel or
// individual principals having vanished: failures are logged and skipped, the
// data model stays authoritative.
func (m *Manager) Restore(ctx context.Context, channelID string, blob []byte) error {
	snap := make(Snapshot)
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &snap); err != nil {
			return fmt.Errorf("error unmarshalling snapshot: %w", err)
		}
	}

	channel, err := m.s.Channel(channelID)
	if err != nil {
		m.l.Warn("Channel not found on restore, skipping",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
		return nil
	}

	seen := make(map[string]bool, len(channel.PermissionOverwrites))
	for _, ow := range channel.PermissionOverwrites {
		seen[ow.ID] = true

		orig, ok := snap[ow.ID]
		if !ok {
			if err := m.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("error waiting for rate limiter: %w", err)
			}
			if err := m.s.ChannelPermissionDelete(channelID, ow.ID); err != nil {
				m.l.Warn("Error clearing overwrite on restore",
					slog.String(logging.KeyChannel, channelID),
					slog.String(logging.KeyUser, ow.ID),
					slog.String(logging.KeyError, err.Error()))
			}
			continue
		}

		allow := (ow.Allow &^ overrideMask) | orig.Allow
		deny := (ow.Deny &^ overrideMask) | orig.Deny
		if err := m.set(ctx, channelID, ow.ID, orig.Type, allow, deny); err != nil {
			m.l.Warn("Error reapplying overwrite on restore",
				slog.String(logging.KeyChannel, channelID),
				slog.String(logging.KeyUser, ow.ID),
				slog.String(logging.KeyError, err.Error()))
		}
	}

	// Principals that were snapshotted but no longer carry an overwrite.
	for id, orig := range snap {
		if seen[id] {
			continue
		}
		if err := m.set(ctx, channelID, id, orig.Type, orig.Allow, orig.Deny); err != nil {
			m.l.Warn("Error recreating overwrite on restore",
				slog.String(logging.KeyChannel, channelID),
				slog.String(logging.KeyUser, id),
				slog.String(logging.KeyError, err.Error()))
		}
	}
	return nil
}

// HasStaffRole reports whether the member may act as staff: direct membership
// of the staff role, administrator permission, or any role positioned above
// the staff role.
func HasStaffRole(member *discordgo.Member, guildRoles []*discordgo.Role, staffRoleID string) bool {
	if staffRoleID == "" {
		return false
	}

	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}

	var staffPosition int
	found := false
	for _, role := range guildRoles {
		if role.ID == staffRoleID {
			staffPosition = role.Position
			found = true
			break
		}
	}
	if !found {
		return false
	}

	positions := make(map[string]int, len(guildRoles))
	for _, role := range guildRoles {
		positions[role.ID] = role.Position
	}

	for _, roleID := range member.Roles {
		if roleID == staffRoleID {
			return true
		}
		if positions[roleID] > staffPosition {
			return true
		}
	}
	return false
}

// HasRole reports whether the member holds the given role.
func HasRole(member *discordgo.Member, roleID string) bool {
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}
