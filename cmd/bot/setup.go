package main

import (
	"context"
	"fmt"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/shepherd/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/shepherd/pkg/messages"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// setupCmdName is the command for all configuration commands.
	setupCmdName = "setup"

	// staffRoleCmdName is the sub command setting the staff role.
	staffRoleCmdName = "staff_role"

	// officerRoleCmdName is the sub command setting the officer role.
	officerRoleCmdName = "officer_role"

	// categoryAddCmdName is the sub command allowing a ticket category.
	categoryAddCmdName = "category_add"

	// categoryRemoveCmdName is the sub command disallowing a ticket category.
	categoryRemoveCmdName = "category_remove"

	// leaderboardChannelCmdName is the sub command setting the leaderboard
	// broadcast channel.
	leaderboardChannelCmdName = "leaderboard_channel"

	// roleOptName is the role option name.
	roleOptName = "role"

	// categoryOptName is the category option name.
	categoryOptName = "category"

	// channelOptName is the channel option name.
	channelOptName = "channel"
)

// setupCmd is the command for all configuration commands.
var setupCmd = &discordgo.ApplicationCommand{
	Name:        setupCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "This is the command for all configuration commands.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        staffRoleCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This sets the role allowed to claim tickets.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        roleOptName,
					Type:        discordgo.ApplicationCommandOptionRole,
					Description: "This is the staff role.",
					Required:    true,
				},
			},
		},
		{
			Name:        officerRoleCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This sets the role invited on officer escalations.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        roleOptName,
					Type:        discordgo.ApplicationCommandOptionRole,
					Description: "This is the officer role.",
					Required:    true,
				},
			},
		},
		{
			Name:        categoryAddCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This allows ticket claims in a category.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        categoryOptName,
					Type:        discordgo.ApplicationCommandOptionChannel,
					Description: "This is the category to allow.",
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildCategory,
					},
					Required: true,
				},
			},
		},
		{
			Name:        categoryRemoveCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This removes a category from the allowed set.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        categoryOptName,
					Type:        discordgo.ApplicationCommandOptionChannel,
					Description: "This is the category to remove.",
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildCategory,
					},
					Required: true,
				},
			},
		},
		{
			Name:        leaderboardChannelCmdName,
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Description: "This sets the channel for leaderboard broadcasts. Omit the channel to disable.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        channelOptName,
					Type:        discordgo.ApplicationCommandOptionChannel,
					Description: "This is the channel to broadcast leaderboards to.",
					Required:    false,
				},
			},
		},
	},
}

func setupCmdController(a IApp, i *discordgo.InteractionCreate) (commandProcessor, error) {
	// Ensure the user is an administrator.
	if i.Member.Permissions&discordgo.PermissionAdministrator != discordgo.PermissionAdministrator {
		if err := respondEphemeral(a, i, messages.ErrAdminOnly); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// Extract the sub command.
	subCmd := i.ApplicationCommandData().Options[0].Name

	switch subCmd {
	case staffRoleCmdName:
		return staffRoleCmdProcessor, nil
	case officerRoleCmdName:
		return officerRoleCmdProcessor, nil
	case categoryAddCmdName:
		return categoryAddCmdProcessor, nil
	case categoryRemoveCmdName:
		return categoryRemoveCmdProcessor, nil
	case leaderboardChannelCmdName:
		return leaderboardChannelCmdProcessor, nil
	default:
		return nil, fmt.Errorf("unknown sub command %s", subCmd)
	}
}

func staffRoleCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("setup_staff_role"))
	defer t.ObserveDuration()

	opt, ok := subCommandOptions(i)[roleOptName]
	if !ok {
		return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
	}
	role := opt.RoleValue(nil, "")

	if err := a.Guilds().SetStaffRole(context.Background(), i.GuildID, role.ID); err != nil {
		return fmt.Errorf("error setting staff role: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Staff role set to <@&%s>.", role.ID))
}

func officerRoleCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("setup_officer_role"))
	defer t.ObserveDuration()

	opt, ok := subCommandOptions(i)[roleOptName]
	if !ok {
		return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
	}
	role := opt.RoleValue(nil, "")

	if err := a.Guilds().SetOfficerRole(context.Background(), i.GuildID, role.ID); err != nil {
		return fmt.Errorf("error setting officer role: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Officer role set to <@&%s>.", role.ID))
}

func categoryAddCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("setup_category_add"))
	defer t.ObserveDuration()

	opt, ok := subCommandOptions(i)[categoryOptName]
	if !ok {
		return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
	}
	category := opt.ChannelValue(nil)

	if err := a.Guilds().AddAllowedCategory(context.Background(), i.GuildID, category.ID); err != nil {
		return fmt.Errorf("error adding allowed category: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Category <#%s> added to the allowed set.", category.ID))
}

func categoryRemoveCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("setup_category_remove"))
	defer t.ObserveDuration()

	opt, ok := subCommandOptions(i)[categoryOptName]
	if !ok {
		return respondEphemeral(a, i, messages.ErrUserErrorProcessing)
	}
	category := opt.ChannelValue(nil)

	if err := a.Guilds().RemoveAllowedCategory(context.Background(), i.GuildID, category.ID); err != nil {
		return fmt.Errorf("error removing allowed category: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Category <#%s> removed from the allowed set.", category.ID))
}

func leaderboardChannelCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("setup_leaderboard_channel"))
	defer t.ObserveDuration()

	opt, ok := subCommandOptions(i)[channelOptName]
	if !ok {
		// No channel disables the broadcast.
		if err := a.Guilds().ClearLeaderboardChannel(context.Background(), i.GuildID); err != nil {
			return fmt.Errorf("error clearing leaderboard channel: %w", err)
		}
		return respondEphemeral(a, i, "Leaderboard broadcasts disabled.")
	}
	channel := opt.ChannelValue(nil)

	if err := a.Guilds().SetLeaderboardChannel(context.Background(), i.GuildID, channel.ID); err != nil {
		return fmt.Errorf("error setting leaderboard channel: %w", err)
	}

	return respondEphemeral(a, i, fmt.Sprintf("Leaderboard broadcasts will be sent to <#%s>.", channel.ID))
}
