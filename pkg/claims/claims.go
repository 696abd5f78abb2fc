package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/shepherd/pkg/custom"
	"github.com/Jacobbrewer1/shepherd/pkg/dataaccess"
	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"github.com/Jacobbrewer1/shepherd/pkg/messages"
	"github.com/Jacobbrewer1/shepherd/pkg/permissions"
)

var (
	// ErrNotConfigured is returned when the guild has no staff or officer
	// role configured for the attempted operation.
	ErrNotConfigured = errors.New("guild not configured")

	// ErrUnauthorized is returned when the caller fails the role check.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrAlreadyClaimed is returned when the channel already has an open claim.
	ErrAlreadyClaimed = errors.New("ticket already claimed")

	// ErrNoActiveClaim is returned when the channel has no open claim.
	ErrNoActiveClaim = errors.New("no active claim")

	// ErrInvalidTarget is returned when a bot account is supplied as the
	// ticket holder.
	ErrInvalidTarget = errors.New("invalid target user")

	// ErrNotFound is returned when the channel vanished between validation
	// and action.
	ErrNotFound = errors.New("channel not found")

	// ErrNotTicketChannel is returned when the channel is not recognized as a
	// ticket channel.
	ErrNotTicketChannel = errors.New("not a ticket channel")
)

// ticketKeywords mark a channel (or its category) as a ticket channel.
var ticketKeywords = []string{"ticket", "support", "help"}

// Discord is the slice of the session the controller needs.
type Discord interface {
	// Channel gets a channel by ID.
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// GuildRoles gets the guild's roles.
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)

	// ChannelMessageSend sends a message to a channel.
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Permissions captures, restricts and restores channel overwrites.
type Permissions interface {
	Take(channel *discordgo.Channel) ([]byte, error)
	Restrict(ctx context.Context, channel *discordgo.Channel, guildID, holderID, claimerID, staffRoleID string) error
	Restore(ctx context.Context, channelID string, blob []byte) error
	GrantOfficer(ctx context.Context, channelID, officerRoleID string) error
}

// Scores awards claim points.
type Scores interface {
	Award(ctx context.Context, claim *entities.Claim) (bool, error)
}

// Watchers manages the per-channel timeout watchers.
type Watchers interface {
	Start(channelID string)
	Stop(channelID string)
}

// Controller drives the claim state machine for ticket channels.
type Controller struct {
	// l is the logger.
	l *slog.Logger

	// s is the discord session.
	s Discord

	// guilds is the guild configuration data access layer.
	guilds dataaccess.GuildDal

	// claims is the claim data access layer.
	claims dataaccess.ClaimDal

	// timeouts is the active timeout data access layer.
	timeouts dataaccess.TimeoutDal

	// holders is the ticket holder data access layer.
	holders dataaccess.HolderDal

	// scores awards points to claimers.
	scores Scores

	// perms manages channel permission overwrites.
	perms Permissions

	// watchers is the timeout watcher registry.
	watchers Watchers

	// window is the inactivity window for new claims.
	window time.Duration
}

// NewController creates a new claim lifecycle controller.
func NewController(
	l *slog.Logger,
	s Discord,
	guilds dataaccess.GuildDal,
	claimDal dataaccess.ClaimDal,
	timeouts dataaccess.TimeoutDal,
	holders dataaccess.HolderDal,
	scores Scores,
	perms Permissions,
	watchers Watchers,
	window time.Duration,
) *Controller {
	return &Controller{
		l:        l.With(slog.String(logging.KeyComponent, "claims")),
		s:        s,
		guilds:   guilds,
		claims:   claimDal,
		timeouts: timeouts,
		holders:  holders,
		scores:   scores,
		perms:    perms,
		watchers: watchers,
		window:   window,
	}
}

// Window is the inactivity window applied to new claims.
func (c *Controller) Window() time.Duration {
	return c.window
}

// IsTicketChannel reports whether the channel counts as a ticket channel:
// the channel or its category carries a ticket keyword in its name, and the
// category is allowed by the guild configuration.
func (c *Controller) IsTicketChannel(channel *discordgo.Channel, guild *entities.Guild) bool {
	if !guild.CategoryAllowed(channel.ParentID) {
		return false
	}

	if hasTicketKeyword(channel.Name) {
		return true
	}

	if channel.ParentID != "" {
		parent, err := c.s.Channel(channel.ParentID)
		if err == nil && hasTicketKeyword(parent.Name) {
			return true
		}
	}
	return false
}

func hasTicketKeyword(name string) bool {
	lowered := strings.ToLower(name)
	for _, kw := range ticketKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// guildChannel loads the guild config and the channel, and validates the
// ticket-channel heuristic.
func (c *Controller) guildChannel(ctx context.Context, guildID, channelID string) (*entities.Guild, *discordgo.Channel, error) {
	guild, err := c.guilds.GetGuildByID(ctx, guildID)
	if err != nil {
		if errors.Is(err, dataaccess.ErrNotFound) {
			return nil, nil, ErrNotConfigured
		}
		return nil, nil, fmt.Errorf("error getting guild config: %w", err)
	}

	channel, err := c.s.Channel(channelID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, channelID)
	}

	if !c.IsTicketChannel(channel, guild) {
		return nil, nil, ErrNotTicketChannel
	}
	return guild, channel, nil
}

func (c *Controller) requireStaff(guild *entities.Guild, member *discordgo.Member) error {
	if guild.StaffRoleID == "" {
		return ErrNotConfigured
	}

	roles, err := c.s.GuildRoles(guild.ID)
	if err != nil {
		return fmt.Errorf("error getting guild roles: %w", err)
	}

	if !permissions.HasStaffRole(member, roles, guild.StaffRoleID) {
		return ErrUnauthorized
	}
	return nil
}

// resolveHolder picks the ticket holder for a new claim: the explicit
// argument wins, then the recorded holder, then the claimer themselves.
func (c *Controller) resolveHolder(ctx context.Context, channelID, claimerID string, explicit *discordgo.User) (string, error) {
	if explicit != nil {
		if explicit.Bot {
			return "", ErrInvalidTarget
		}
		return explicit.ID, nil
	}

	holder, err := c.holders.GetHolder(ctx, channelID)
	if err == nil {
		return holder.UserID, nil
	}
	if !errors.Is(err, dataaccess.ErrNotFound) {
		return "", fmt.Errorf("error getting ticket holder: %w", err)
	}
	return claimerID, nil
}

// Claim takes the ticket for the claimer: permissions are snapshotted and
// narrowed to the claimer and the holder, a claim row and its timeout row are
// written, and a watcher is started.
func (c *Controller) Claim(ctx context.Context, guildID, channelID string, claimer *discordgo.Member, holder *discordgo.User) error {
	return c.open(ctx, guildID, channelID, claimer, holder, false)
}

// Reclaim re-takes a ticket that a staff-side timeout released. The channel's
// permissions were already restored, so the flow is a fresh claim; it fails
// when a live timeout still exists.
func (c *Controller) Reclaim(ctx context.Context, guildID, channelID string, claimer *discordgo.Member, holder *discordgo.User) error {
	return c.open(ctx, guildID, channelID, claimer, holder, true)
}

func (c *Controller) open(ctx context.Context, guildID, channelID string, claimer *discordgo.Member, holder *discordgo.User, reclaim bool) error {
	guild, channel, err := c.guildChannel(ctx, guildID, channelID)
	if err != nil {
		return err
	}

	if err := c.requireStaff(guild, claimer); err != nil {
		return err
	}

	// Fail fast before touching permissions. The transaction below guards
	// the race regardless.
	if reclaim {
		if _, err := c.timeouts.GetTimeout(ctx, channelID); err == nil {
			return ErrAlreadyClaimed
		} else if !errors.Is(err, dataaccess.ErrNotFound) {
			return fmt.Errorf("error checking active timeout: %w", err)
		}
	} else {
		if _, err := c.claims.GetOpenClaim(ctx, channelID); err == nil {
			return ErrAlreadyClaimed
		} else if !errors.Is(err, dataaccess.ErrNotFound) {
			return fmt.Errorf("error checking open claim: %w", err)
		}
	}

	claimerID := claimer.User.ID
	holderID, err := c.resolveHolder(ctx, channelID, claimerID, holder)
	if err != nil {
		return err
	}

	if holder != nil {
		err := c.holders.SetHolder(ctx, &entities.TicketHolder{
			ChannelID: channelID,
			UserID:    holderID,
			SetBy:     claimerID,
			SetAt:     custom.Now(),
		})
		if err != nil {
			return fmt.Errorf("error recording ticket holder: %w", err)
		}
	}

	blob, err := c.perms.Take(channel)
	if err != nil {
		return fmt.Errorf("error snapshotting permissions: %w", err)
	}

	if err := c.perms.Restrict(ctx, channel, guildID, holderID, claimerID, guild.StaffRoleID); err != nil {
		return fmt.Errorf("error restricting channel: %w", err)
	}

	now := custom.Now()
	claim := &entities.Claim{
		GuildID:   guildID,
		ChannelID: channelID,
		ClaimerID: claimerID,
		ClaimedAt: now,
	}
	timeout := &entities.ActiveTimeout{
		ChannelID:           channelID,
		ClaimerID:           claimerID,
		TicketHolderID:      holderID,
		ClaimTime:           now,
		LastStaffMessage:    now,
		LastHolderMessage:   now,
		OriginalPermissions: blob,
	}

	if err := c.claims.OpenClaim(ctx, claim, timeout); err != nil {
		if errors.Is(err, dataaccess.ErrClaimExists) {
			// Lost the race. Put the permissions back.
			if rerr := c.perms.Restore(ctx, channelID, blob); rerr != nil {
				c.l.Error("Error restoring permissions after lost claim race",
					slog.String(logging.KeyChannel, channelID),
					slog.String(logging.KeyError, rerr.Error()))
			}
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("error opening claim: %w", err)
	}

	c.watchers.Start(channelID)

	template := messages.ClaimConfirm
	if reclaim {
		template = messages.ReclaimConfirm
	}
	c.announce(channelID, fmt.Sprintf(template,
		mentionUser(claimerID), mentionUser(holderID), int(c.window.Minutes())))

	c.l.Info("Ticket claimed",
		slog.String(logging.KeyGuild, guildID),
		slog.String(logging.KeyChannel, channelID),
		slog.String(logging.KeyUser, claimerID))
	return nil
}

// Unclaim resolves the ticket manually: permissions are restored, the claim
// is completed, the watcher is cancelled, and the claimer is awarded a point
// unless officer escalation already paid it out.
func (c *Controller) Unclaim(ctx context.Context, guildID, channelID string, requester *discordgo.Member) error {
	at, err := c.timeouts.GetTimeout(ctx, channelID)
	if err != nil {
		if errors.Is(err, dataaccess.ErrNotFound) {
			return ErrNoActiveClaim
		}
		return fmt.Errorf("error getting active timeout: %w", err)
	}

	requesterID := requester.User.ID
	manager := requester.Permissions&(discordgo.PermissionManageChannels|discordgo.PermissionAdministrator) != 0
	if requesterID != at.ClaimerID && !manager {
		return ErrUnauthorized
	}

	if err := c.perms.Restore(ctx, channelID, at.OriginalPermissions); err != nil {
		// Data model stays authoritative; do not abort the resolution.
		c.l.Error("Error restoring permissions on unclaim",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}

	res, err := c.claims.ResolveOpenClaim(ctx, channelID, false)
	if err != nil {
		if errors.Is(err, dataaccess.ErrNoOpenClaim) {
			c.watchers.Stop(channelID)
			return ErrNoActiveClaim
		}
		return fmt.Errorf("error resolving claim: %w", err)
	}

	c.watchers.Stop(channelID)

	if !at.OfficerUsed {
		if _, err := c.scores.Award(ctx, res.Claim); err != nil {
			c.l.Error("Error awarding point on unclaim",
				slog.String(logging.KeyChannel, channelID),
				slog.String(logging.KeyUser, res.Claim.ClaimerID),
				slog.String(logging.KeyError, err.Error()))
		}
	}

	c.announce(channelID, messages.UnclaimConfirm)

	c.l.Info("Ticket unclaimed",
		slog.String(logging.KeyGuild, guildID),
		slog.String(logging.KeyChannel, channelID),
		slog.String(logging.KeyUser, requesterID))
	return nil
}

// OfficerEscalate invites the officer role into an already-claimed ticket and
// awards the claimer a point immediately. The claim stays open until resolved
// by unclaim or timeout.
func (c *Controller) OfficerEscalate(ctx context.Context, guildID, channelID string, officer *discordgo.Member) error {
	guild, _, err := c.guildChannel(ctx, guildID, channelID)
	if err != nil {
		return err
	}

	if guild.OfficerRoleID == "" {
		return ErrNotConfigured
	}

	// Escalation is role gated only; administrator permission does not
	// stand in for the officer role.
	if !permissions.HasRole(officer, guild.OfficerRoleID) {
		return ErrUnauthorized
	}

	if _, err := c.timeouts.GetTimeout(ctx, channelID); err != nil {
		if errors.Is(err, dataaccess.ErrNotFound) {
			return ErrNoActiveClaim
		}
		return fmt.Errorf("error getting active timeout: %w", err)
	}

	if err := c.timeouts.MarkOfficerUsed(ctx, channelID); err != nil {
		return fmt.Errorf("error marking officer escalation: %w", err)
	}

	if err := c.perms.GrantOfficer(ctx, channelID, guild.OfficerRoleID); err != nil {
		c.l.Error("Error granting officer access",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}

	claim, err := c.claims.GetOpenClaim(ctx, channelID)
	if err != nil {
		return fmt.Errorf("error getting open claim: %w", err)
	}

	if _, err := c.scores.Award(ctx, claim); err != nil {
		c.l.Error("Error awarding point on escalation",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyUser, claim.ClaimerID),
			slog.String(logging.KeyError, err.Error()))
	}

	c.announce(channelID, fmt.Sprintf(messages.OfficerInvite,
		mentionRole(guild.OfficerRoleID), mentionUser(claim.ClaimerID)))

	c.l.Info("Officer escalation",
		slog.String(logging.KeyGuild, guildID),
		slog.String(logging.KeyChannel, channelID),
		slog.String(logging.KeyUser, officer.User.ID))
	return nil
}

// SetTicketHolder records who the ticket belongs to. A live timeout keeps its
// recorded holder; the change applies from the next claim.
func (c *Controller) SetTicketHolder(ctx context.Context, guildID, channelID string, setter *discordgo.Member, user *discordgo.User) error {
	guild, _, err := c.guildChannel(ctx, guildID, channelID)
	if err != nil {
		return err
	}

	if err := c.requireStaff(guild, setter); err != nil {
		return err
	}

	if user.Bot {
		return ErrInvalidTarget
	}

	err = c.holders.SetHolder(ctx, &entities.TicketHolder{
		ChannelID: channelID,
		UserID:    user.ID,
		SetBy:     setter.User.ID,
		SetAt:     custom.Now(),
	})
	if err != nil {
		return fmt.Errorf("error setting ticket holder: %w", err)
	}

	c.announce(channelID, fmt.Sprintf(messages.HolderSet, mentionUser(user.ID)))
	return nil
}

// RecordActivity updates the activity timestamp matching the author's part in
// the channel's open claim, if any.
func (c *Controller) RecordActivity(ctx context.Context, channelID, authorID string) error {
	if err := c.timeouts.UpdateActivity(ctx, channelID, authorID, custom.Now()); err != nil {
		return fmt.Errorf("error updating activity: %w", err)
	}
	return nil
}

func (c *Controller) announce(channelID, content string) {
	if _, err := c.s.ChannelMessageSend(channelID, content); err != nil {
		c.l.Warn("Error sending announcement",
			slog.String(logging.KeyChannel, channelID),
			slog.String(logging.KeyError, err.Error()))
	}
}

func mentionUser(id string) string {
	return "<@" + id + ">"
}

func mentionRole(id string) string {
	return "<@&" + id + ">"
}
