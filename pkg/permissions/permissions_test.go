package permissions

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/stretchr/testify/require"
)

type fakeDiscord struct {
	channels map[string]*discordgo.Channel
	sets     int
	deletes  int
}

func newFakeDiscord(channels ...*discordgo.Channel) *fakeDiscord {
	f := &fakeDiscord{channels: make(map[string]*discordgo.Channel)}
	for _, c := range channels {
		f.channels[c.ID] = c
	}
	return f
}

// Channel returns a copy of the stored channel so that callers ranging over
// the overwrites are not affected by concurrent mutations through the fake.
func (f *fakeDiscord) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	c, ok := f.channels[channelID]
	if !ok {
		return nil, errors.New("channel not found")
	}

	cp := *c
	cp.PermissionOverwrites = make([]*discordgo.PermissionOverwrite, len(c.PermissionOverwrites))
	for i, ow := range c.PermissionOverwrites {
		owCopy := *ow
		cp.PermissionOverwrites[i] = &owCopy
	}
	return &cp, nil
}

func (f *fakeDiscord) ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, _ ...discordgo.RequestOption) error {
	f.sets++
	c, ok := f.channels[channelID]
	if !ok {
		return errors.New("channel not found")
	}
	for _, ow := range c.PermissionOverwrites {
		if ow.ID == targetID {
			ow.Type = targetType
			ow.Allow = allow
			ow.Deny = deny
			return nil
		}
	}
	c.PermissionOverwrites = append(c.PermissionOverwrites, &discordgo.PermissionOverwrite{
		ID:    targetID,
		Type:  targetType,
		Allow: allow,
		Deny:  deny,
	})
	return nil
}

func (f *fakeDiscord) ChannelPermissionDelete(channelID, targetID string, _ ...discordgo.RequestOption) error {
	f.deletes++
	c, ok := f.channels[channelID]
	if !ok {
		return errors.New("channel not found")
	}
	for i, ow := range c.PermissionOverwrites {
		if ow.ID == targetID {
			c.PermissionOverwrites = append(c.PermissionOverwrites[:i], c.PermissionOverwrites[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeDiscord) overwrites(channelID string) map[string]*discordgo.PermissionOverwrite {
	out := make(map[string]*discordgo.PermissionOverwrite)
	for _, ow := range f.channels[channelID].PermissionOverwrites {
		out[ow.ID] = ow
	}
	return out
}

func testManager(f *fakeDiscord) *Manager {
	return NewManager(slog.Default(), f)
}

func TestManager_RestoreRoundTrip(t *testing.T) {
	channel := &discordgo.Channel{
		ID: "channel1",
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				ID:    "guild1",
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel,
				Deny:  discordgo.PermissionSendMessages,
			},
			{
				ID:    "staffRole",
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
				Deny:  0,
			},
		},
	}
	f := newFakeDiscord(channel)
	m := testManager(f)

	blob, err := m.Take(channel)
	require.NoError(t, err)

	err = m.Restrict(context.Background(), channel, "guild1", "holder1", "claimer1", "staffRole")
	require.NoError(t, err)

	// The restriction must have narrowed the channel before restore.
	restricted := f.overwrites("channel1")
	require.Equal(t, int64(discordgo.PermissionSendMessages), restricted["staffRole"].Deny)
	require.Contains(t, restricted, "claimer1")
	require.Contains(t, restricted, "holder1")

	err = m.Restore(context.Background(), "channel1", blob)
	require.NoError(t, err)

	got := f.overwrites("channel1")
	require.Len(t, got, 2)
	require.Equal(t, int64(discordgo.PermissionViewChannel), got["guild1"].Allow)
	require.Equal(t, int64(discordgo.PermissionSendMessages), got["guild1"].Deny)
	require.Equal(t, int64(discordgo.PermissionViewChannel|discordgo.PermissionSendMessages), got["staffRole"].Allow)
	require.Equal(t, int64(0), got["staffRole"].Deny)
}

func TestManager_RestoreEmptySnapshot(t *testing.T) {
	channel := &discordgo.Channel{ID: "channel1"}
	f := newFakeDiscord(channel)
	m := testManager(f)

	blob, err := m.Take(channel)
	require.NoError(t, err)

	err = m.Restrict(context.Background(), channel, "guild1", "holder1", "claimer1", "staffRole")
	require.NoError(t, err)
	require.NotEmpty(t, f.overwrites("channel1"))

	err = m.Restore(context.Background(), "channel1", blob)
	require.NoError(t, err)
	require.Empty(t, f.overwrites("channel1"))
}

func TestManager_RestoreIdempotent(t *testing.T) {
	channel := &discordgo.Channel{
		ID: "channel1",
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				ID:    "staffRole",
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel,
			},
		},
	}
	f := newFakeDiscord(channel)
	m := testManager(f)

	blob, err := m.Take(channel)
	require.NoError(t, err)

	require.NoError(t, m.Restrict(context.Background(), channel, "guild1", "holder1", "claimer1", "staffRole"))
	require.NoError(t, m.Restore(context.Background(), "channel1", blob))
	first := f.overwrites("channel1")

	require.NoError(t, m.Restore(context.Background(), "channel1", blob))
	second := f.overwrites("channel1")

	require.Equal(t, len(first), len(second))
	for id, ow := range first {
		require.Equal(t, ow.Allow, second[id].Allow)
		require.Equal(t, ow.Deny, second[id].Deny)
	}
}

func TestManager_RestoreChannelGone(t *testing.T) {
	f := newFakeDiscord()
	m := testManager(f)

	err := m.Restore(context.Background(), "missing", []byte(`{}`))
	require.NoError(t, err)
	require.Zero(t, f.sets)
	require.Zero(t, f.deletes)
}

func TestHasStaffRole(t *testing.T) {
	roles := []*discordgo.Role{
		{ID: "everyone", Position: 0},
		{ID: "staffRole", Position: 5},
		{ID: "officerRole", Position: 10},
	}

	tests := []struct {
		name   string
		member *discordgo.Member
		want   bool
	}{
		{
			name:   "staff member",
			member: &discordgo.Member{Roles: []string{"staffRole"}},
			want:   true,
		},
		{
			name:   "administrator without role",
			member: &discordgo.Member{Permissions: discordgo.PermissionAdministrator},
			want:   true,
		},
		{
			name:   "higher role than staff",
			member: &discordgo.Member{Roles: []string{"officerRole"}},
			want:   true,
		},
		{
			name:   "no qualifying role",
			member: &discordgo.Member{Roles: []string{"everyone"}},
			want:   false,
		},
		{
			name:   "no roles at all",
			member: &discordgo.Member{},
			want:   false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := HasStaffRole(test.member, roles, "staffRole")
			require.Equal(t, test.want, got)
		})
	}
}

func TestHasStaffRole_NotConfigured(t *testing.T) {
	member := &discordgo.Member{Roles: []string{"staffRole"}}
	require.False(t, HasStaffRole(member, nil, ""))
}

func TestHasRole(t *testing.T) {
	member := &discordgo.Member{Roles: []string{"a", "b"}}
	require.True(t, HasRole(member, "b"))
	require.False(t, HasRole(member, "c"))
}
