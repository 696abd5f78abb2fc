package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/shepherd/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"github.com/Jacobbrewer1/shepherd/pkg/scoring"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// leaderboardCmdName is the command showing the claim leaderboard.
	leaderboardCmdName = "leaderboard"

	// periodOptName is the option selecting the leaderboard period.
	periodOptName = "period"

	// pageOptName is the option selecting the leaderboard page.
	pageOptName = "page"

	// leaderboardPageSize is the number of entries shown per page.
	leaderboardPageSize = 10
)

// medals decorate the top three places.
var medals = []string{"\U0001F947", "\U0001F948", "\U0001F949"}

// leaderboardCmd is the command showing the claim leaderboard.
var leaderboardCmd = &discordgo.ApplicationCommand{
	Name:        leaderboardCmdName,
	Type:        discordgo.ChatApplicationCommand,
	Description: "This shows the ticket claim leaderboard.",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Name:        periodOptName,
			Type:        discordgo.ApplicationCommandOptionString,
			Description: "This is the period to rank by. Defaults to total.",
			Required:    false,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "daily", Value: string(entities.PeriodDaily)},
				{Name: "weekly", Value: string(entities.PeriodWeekly)},
				{Name: "total", Value: string(entities.PeriodTotal)},
			},
		},
		{
			Name:        pageOptName,
			Type:        discordgo.ApplicationCommandOptionInteger,
			Description: "This is the page to show. Defaults to the first.",
			Required:    false,
		},
	},
}

func leaderboardCmdController(_ IApp, _ *discordgo.InteractionCreate) (commandProcessor, error) {
	return leaderboardCmdProcessor, nil
}

func leaderboardCmdProcessor(a IApp, i *discordgo.InteractionCreate) error {
	t := prometheus.NewTimer(monitoring.DiscordCommandDuration.WithLabelValues("leaderboard"))
	defer t.ObserveDuration()

	period := entities.PeriodTotal
	page := 1
	for name, opt := range subCommandOptionsTop(i) {
		switch name {
		case periodOptName:
			period = entities.Period(opt.StringValue())
		case pageOptName:
			page = int(opt.IntValue())
		}
	}
	if page < 1 {
		page = 1
	}

	ents, err := a.Scores().Leaderboard(context.Background(), i.GuildID, period)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidPeriod) {
			return respondEphemeral(a, i, "Unknown leaderboard period.")
		}
		return fmt.Errorf("error getting leaderboard: %w", err)
	}

	return respondEmbed(a, i, leaderboardEmbed(ents, period, page))
}

// subCommandOptionsTop returns the command's top-level options keyed by name.
// Used for commands without sub commands.
func subCommandOptionsTop(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		out[opt.Name] = opt
	}
	return out
}

func leaderboardEmbed(ents []*entities.LeaderboardEntry, period entities.Period, page int) *discordgo.MessageEmbed {
	totalPages := leaderboardPages(len(ents))
	if page > totalPages {
		page = totalPages
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("\U0001F3C6 Claim Leaderboard (%s)", periodLabel(period)),
		Description: leaderboardPage(ents, period, page),
		Color:       0xF1C40F,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d of %d", page, totalPages),
		},
	}
}

// periodLabel title-cases the period for display. Periods are single
// lowercase ASCII words.
func periodLabel(period entities.Period) string {
	p := string(period)
	if p == "" {
		return p
	}
	return strings.ToUpper(p[:1]) + p[1:]
}

func leaderboardPages(entries int) int {
	pages := (entries + leaderboardPageSize - 1) / leaderboardPageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// leaderboardPage renders one page of ranked entries. Ranks continue across
// pages; the top three get medals.
func leaderboardPage(ents []*entities.LeaderboardEntry, period entities.Period, page int) string {
	if len(ents) == 0 {
		return "No claims recorded yet."
	}

	start := (page - 1) * leaderboardPageSize
	if start >= len(ents) {
		start = (leaderboardPages(len(ents)) - 1) * leaderboardPageSize
	}
	end := start + leaderboardPageSize
	if end > len(ents) {
		end = len(ents)
	}

	var sb strings.Builder
	for idx := start; idx < end; idx++ {
		rank := idx + 1
		prefix := fmt.Sprintf("**%d.**", rank)
		if rank <= len(medals) {
			prefix = medals[rank-1]
		}
		fmt.Fprintf(&sb, "%s <@%s>: **%d** claims\n", prefix, ents[idx].UserID, ents[idx].Count(period))
	}
	return sb.String()
}

// broadcastLeaderboards sends the daily and weekly standings to every guild
// with a configured leaderboard channel. Guilds whose channel has vanished
// get their setting cleared.
func broadcastLeaderboards(a IApp) {
	ctx := context.Background()

	guilds, err := a.Guilds().ListLeaderboardChannels(ctx)
	if err != nil {
		a.Log().Error("Error listing leaderboard channels", slog.String(logging.KeyError, err.Error()))
		return
	}

	for _, guild := range guilds {
		daily, err := a.Scores().Leaderboard(ctx, guild.ID, entities.PeriodDaily)
		if err != nil {
			a.Log().Error("Error getting daily leaderboard",
				slog.String(logging.KeyGuild, guild.ID),
				slog.String(logging.KeyError, err.Error()))
			continue
		}
		weekly, err := a.Scores().Leaderboard(ctx, guild.ID, entities.PeriodWeekly)
		if err != nil {
			a.Log().Error("Error getting weekly leaderboard",
				slog.String(logging.KeyGuild, guild.ID),
				slog.String(logging.KeyError, err.Error()))
			continue
		}

		embed := &discordgo.MessageEmbed{
			Title: "\U0001F3C6 Claim Leaderboard",
			Color: 0xF1C40F,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:  "Today",
					Value: leaderboardPage(daily, entities.PeriodDaily, 1),
				},
				{
					Name:  "This Week",
					Value: leaderboardPage(weekly, entities.PeriodWeekly, 1),
				},
			},
		}

		if _, err := a.Session().ChannelMessageSendEmbed(guild.LeaderboardChannelID, embed); err != nil {
			er := new(discordgo.RESTError)
			if errors.As(err, &er) && er.Message != nil &&
				(er.Message.Code == discordgo.ErrCodeUnknownChannel || er.Message.Code == discordgo.ErrCodeGeneralError) {
				// The configured channel is gone; stop broadcasting to it.
				a.Log().Warn("Leaderboard channel gone, clearing setting",
					slog.String(logging.KeyGuild, guild.ID),
					slog.String(logging.KeyChannel, guild.LeaderboardChannelID))
				if err := a.Guilds().ClearLeaderboardChannel(ctx, guild.ID); err != nil {
					a.Log().Error("Error clearing leaderboard channel",
						slog.String(logging.KeyGuild, guild.ID),
						slog.String(logging.KeyError, err.Error()))
				}
				continue
			}
			a.Log().Error("Error broadcasting leaderboard",
				slog.String(logging.KeyGuild, guild.ID),
				slog.String(logging.KeyError, err.Error()))
		}
	}
}
