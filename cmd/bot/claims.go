package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/shepherd/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/shepherd/pkg/claims"
	"github.com/Jacobbrewer1/shepherd/pkg/messages"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// TicketCmdName is the command for managing ticket claims.
	TicketCmdName = "ticket"

	// ClaimCmdName is the sub command for claiming a ticket.
	ClaimCmdName = "claim"

	// UnclaimCmdName is the sub command for unclaiming a ticket.
	UnclaimCmdName = "unclaim"

	// ReclaimCmdName is the sub command for reclaiming a timed-out ticket.
	ReclaimCmdName = "reclaim"

	// OfficerCmdName is the sub command for inviting officers to a ticket.
	OfficerCmdName = "officer"

	// HolderCmdName is the sub command for setting the ticket holder.
	HolderCmdName = "holder"

	// TestTimeoutCmdName is the sub command for a one-shot test window.
	TestTimeoutCmdName = "testtimeout"

	// holderOptName is the user option naming the ticket holder.
	holderOptName = "holder"

	// userOptName is the user option for the holder sub command.
	userOptName = "user"

	// secondsOptName is the integer option for the test window.
	secondsOptName = "seconds"

	// defaultTestTimeoutSeconds is the test window applied when the option
	// is omitted.
	defaultTestTimeoutSeconds = 60
)

// ticketCmd is the command for managing ticket claims.
var ticketCmd = &discordgo.ApplicationCommand{
	Name:        TicketCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "This is the command for managing ticket claims.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        ClaimCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This claims the ticket for the channel that the command was executed in.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        holderOptName,
					Type:        discordgo.ApplicationCommandOptionUser,
					Description: "This is the user the ticket was opened for. Defaults to the recorded holder.",
					Required:    false,
				},
			},
		},
		{
			Name:        UnclaimCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This unclaims the ticket and restores the channel permissions.",
		},
		{
			Name:        ReclaimCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This reclaims a ticket that was released by a staff timeout.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        holderOptName,
					Type:        discordgo.ApplicationCommandOptionUser,
					Description: "This is the user the ticket was opened for. Defaults to the recorded holder.",
					Required:    false,
				},
			},
		},
		{
			Name:        OfficerCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This invites the officer role to help with the ticket.",
		},
		{
			Name:        HolderCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This records who the ticket was opened for.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        userOptName,
					Type:        discordgo.ApplicationCommandOptionUser,
					Description: "This is the ticket holder.",
					Required:    true,
				},
			},
		},
		{
			Name:        TestTimeoutCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This overrides the inactivity window for the next claim on this channel.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        secondsOptName,
					Type:        discordgo.ApplicationCommandOptionInteger,
					Description: "This is the window in seconds. Defaults to 60.",
					Required:    false,
				},
			},
		},
	},
}

func ticketCmdController(_ IApp, i *discordgo.InteractionCreate) (commandProcessor, error) {
	// Extract the sub command.
	subCmd := i.ApplicationCommandData().Options[0].Name

	switch subCmd {
	case ClaimCmdName:
		return claimCmdProcessor, nil
	case UnclaimCmdName:
		return unclaimCmdProcessor, nil
	case ReclaimCmdName:
		return reclaimCmdProcessor, nil
	case OfficerCmdName:
		return officerCmdProcessor, nil
	case HolderCmdName:
		return holderCmdProcessor, nil
	case TestTimeoutCmdName:
		return testTimeoutCmdProcessor, nil
	default:
		return nil, fmt.Errorf("unknown sub command %s", subCmd)
	}
}

// respondLifecycleError answers a failed lifecycle call with the matching
// user-facing message. Unexpected errors are passed back to the dispatcher.
func respondLifecycleError(a IApp, i *discordgo.InteractionCreate, err error, unauthorizedMsg string) error {
	var content string
	switch {
	case errors.Is(err, claims.ErrNotConfigured):
		content = messages.ErrNotConfigured
	case errors.Is(err, claims.ErrUnauthorized):
		content = unauthorizedMsg
	case errors.Is(err, claims.ErrNotTicketChannel):
		content = messages.ErrNotTicketChannel
	case errors.Is(err, claims.ErrAlreadyClaimed):
		content = messages.ErrAlreadyClaimed
	case errors.Is(err, claims.ErrNoActiveClaim):
		content = messages.ErrNotClaimed
	case errors.Is(err, claims.ErrInvalidTarget):
		content = messages.ErrBotTarget
	default:
		return err
	}
	return respondEphemeral(a, i, content)
}

func holderOption(i *discordgo.InteractionCreate, name string) *discordgo.User {
	opt, ok := subCommandOptions(i)[name]
	if !ok {
		return nil
	}
	return opt.UserValue(nil)
}

func claimCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("ticket_claim"))
	defer t.ObserveDuration()

	err := a.Claims().Claim(context.Background(), i.GuildID, i.ChannelID, i.Member, holderOption(i, holderOptName))
	if err != nil {
		return respondLifecycleError(a, i, err, messages.ErrNoPermission)
	}

	return respondEphemeral(a, i, "Ticket claimed.")
}

func reclaimCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("ticket_reclaim"))
	defer t.ObserveDuration()

	err := a.Claims().Reclaim(context.Background(), i.GuildID, i.ChannelID, i.Member, holderOption(i, holderOptName))
	if err != nil {
		return respondLifecycleError(a, i, err, messages.ErrNoPermission)
	}

	return respondEphemeral(a, i, "Ticket reclaimed.")
}

func unclaimCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("ticket_unclaim"))
	defer t.ObserveDuration()

	err := a.Claims().Unclaim(context.Background(), i.GuildID, i.ChannelID, i.Member)
	if err != nil {
		return respondLifecycleError(a, i, err, messages.ErrUnclaimDenied)
	}

	return respondEphemeral(a, i, "Ticket unclaimed.")
}

func officerCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("ticket_officer"))
	defer t.ObserveDuration()

	err := a.Claims().OfficerEscalate(context.Background(), i.GuildID, i.ChannelID, i.Member)
	if err != nil {
		if errors.Is(err, claims.ErrNotConfigured) {
			return respondEphemeral(a, i, messages.ErrOfficerNotConfigured)
		}
		return respondLifecycleError(a, i, err, messages.ErrNoPermission)
	}

	return respondEphemeral(a, i, "Officers invited.")
}

func holderCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("ticket_holder"))
	defer t.ObserveDuration()

	user := holderOption(i, userOptName)
	if user == nil {
		return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
	}

	err := a.Claims().SetTicketHolder(context.Background(), i.GuildID, i.ChannelID, i.Member, user)
	if err != nil {
		return respondLifecycleError(a, i, err, messages.ErrNoPermission)
	}

	return respondEphemeral(a, i, "Ticket holder recorded.")
}

func testTimeoutCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("ticket_testtimeout"))
	defer t.ObserveDuration()

	// Ensure the user is an administrator.
	if i.Member.Permissions&discordgo.PermissionAdministrator != discordgo.PermissionAdministrator {
		return respondEphemeral(a, i, messages.ErrAdminOnly)
	}

	seconds := int64(defaultTestTimeoutSeconds)
	if opt, ok := subCommandOptions(i)[secondsOptName]; ok {
		seconds = opt.IntValue()
	}
	if seconds <= 0 {
		return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
	}

	a.Watchers().SetTestTimeout(i.ChannelID, time.Duration(seconds)*time.Second)

	return respondEphemeral(a, i, fmt.Sprintf(messages.TestTimeoutSet, seconds))
}
