package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/shepherd/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/shepherd/pkg/claims"
	"github.com/Jacobbrewer1/shepherd/pkg/dataaccess"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"github.com/Jacobbrewer1/shepherd/pkg/permissions"
	"github.com/Jacobbrewer1/shepherd/pkg/request"
	"github.com/Jacobbrewer1/shepherd/pkg/scoring"
	"github.com/Jacobbrewer1/shepherd/pkg/watch"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IApp is the interface for the application.
type IApp interface {
	// Log returns the logger.
	Log() *slog.Logger

	// Session returns the discord session.
	Session() *discordgo.Session

	// Claims returns the claim lifecycle controller.
	Claims() *claims.Controller

	// Scores returns the scoring engine.
	Scores() *scoring.Engine

	// Watchers returns the timeout watcher registry.
	Watchers() *watch.Registry

	// Guilds returns the guild configuration data access layer.
	Guilds() dataaccess.GuildDal
}

type App struct {
	// is the logger.
	*slog.Logger

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	// eventNotifier is the channel for notifying of events.
	eventNotifier chan any

	// guilds is the guild configuration data access layer.
	guilds dataaccess.GuildDal

	// ctrl is the claim lifecycle controller.
	ctrl *claims.Controller

	// scores is the scoring engine.
	scores *scoring.Engine

	// watchers is the timeout watcher registry.
	watchers *watch.Registry

	// sched runs the periodic leaderboard resets.
	sched *scheduler
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, r *mux.Router) *App {
	return &App{
		Logger: l,
		r:      r,
	}
}

func (a *App) Run() error {
	// Register bot.
	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	a.initComponents()

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))
	})

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	if err := a.RegisterDiscordHandlers(); err != nil {
		return fmt.Errorf("error registering discord handlers: %w", err)
	}

	// Start event listener.
	go a.eventListener()

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	a.Info("Bot is now running.")

	// Relaunch watchers for claims that were open when the process last
	// stopped.
	if err := a.watchers.Resume(context.Background()); err != nil {
		a.Error("Error resuming timeout watchers", slog.String(logging.KeyError, err.Error()))
	}

	a.sched.start()

	a.generateServer()
	a.setupRoutes()
	a.runServer()

	// Register listener for shutdown signal.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Process shutdown signal.
	for sig := range c {
		a.Info("Received shutdown signal", slog.String("signal", sig.String()))
		if err := a.ShutdownHook(); err != nil {
			a.Error("Error shutting down application", slog.String(logging.KeyError, err.Error()))
		}
		os.Exit(0)
	}
	return nil
}

// initComponents builds the domain components. Called once the configuration
// has been parsed and the Mongo connection established.
func (a *App) initComponents() {
	a.guilds = dataaccess.NewGuildDal()
	claimDal := dataaccess.NewClaimDal()
	timeoutDal := dataaccess.NewTimeoutDal()
	holderDal := dataaccess.NewHolderDal()
	leaderboardDal := dataaccess.NewLeaderboardDal()

	perms := permissions.NewManager(a.Logger, a.s)
	a.scores = scoring.NewEngine(a.Logger, leaderboardDal)
	a.watchers = watch.NewRegistry(a.Logger, a.s, claimDal, timeoutDal, perms, a.scores, ClaimTimeout)
	a.ctrl = claims.NewController(a.Logger, a.s, a.guilds, claimDal, timeoutDal, holderDal,
		a.scores, perms, a.watchers, ClaimTimeout)
	a.sched = newScheduler(a)
}

func (a *App) ShutdownHook() error {
	// Reset the total number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	a.sched.stop()

	// Let running watchers exit cleanly; their state is persisted and
	// resumed on the next start.
	a.watchers.StopAll()

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		return fmt.Errorf("error unregistering slash commands: %w", err)
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		return fmt.Errorf("error closing connection to Discord: %w", err)
	}
	return nil
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsAll)

	if a.eventNotifier == nil {
		// Create event notifier. This is used to observe events. It is buffered to prevent blocking.
		a.eventNotifier = make(chan any, 100)
	}

	dg.SetEventNotifier(a.eventNotifier)

	a.s = dg
	return nil
}

func (a *App) runServer() {
	go func() {
		a.Info("Starting monitoring server")
		if err := a.svr.ListenAndServe(); err != nil {
			a.Error("Error starting monitoring server", slog.String(logging.KeyError, err.Error()))
			a.Warn("Monitoring server will not be available")
		}
	}()
}

func (a *App) setupRoutes() {
	// PathMetrics is the path for metrics.
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)

	// PathHealth is the path for health check.
	a.r.HandleFunc(PathHealth, middlewareHttp(a.healthCheck(), a)).Methods(http.MethodGet)

	// NotFoundHandler is the handler for 404.
	a.r.NotFoundHandler = request.NotFoundHandler(a.Logger)

	// MethodNotAllowedHandler is the handler for 405.
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Logger)
}

func (a *App) generateServer() {
	a.svr = &http.Server{
		Addr:    ":" + MonitoringPort,
		Handler: a.r,
	}
}

func (a *App) GetJoinedGuilds() ([]*discordgo.UserGuild, error) {
	guilds, err := a.s.UserGuilds(0, "", "")
	if err != nil {
		return nil, fmt.Errorf("error getting guilds: %w", err)
	}
	return guilds, nil
}

func (a *App) RegisterDiscordHandlers() error {
	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Every inbound message feeds the activity timestamps.
	a.s.AddHandler(messageCreateHandler(a))

	// Interaction create handler.
	a.s.AddHandler(slashCommandHandler(a,
		map[string]commandController{
			ticketCmd.Name:      ticketCmdController,
			setupCmd.Name:       setupCmdController,
			leaderboardCmd.Name: leaderboardCmdController,
		}))
	return nil
}

func (a *App) eventListener() {
	for e := range a.eventNotifier {
		switch t := e.(type) {
		case *discordgo.Event:
			if t.Type != "" {
				monitoring.TotalDiscordEvents.WithLabelValues(t.Type).Inc()
			} else {
				// If there is no type, then use the operation name.
				monitoring.TotalDiscordEvents.WithLabelValues(strings.ToUpper(t.Operation.String())).Inc()
			}
		default:
			a.Error("Unknown event type", slog.String("type", fmt.Sprintf("%T", e)))
			monitoring.TotalDiscordEvents.WithLabelValues("UNKNOWN").Inc()
		}
	}
}

// slashCommands is every application command the bot registers.
var slashCommands = []*discordgo.ApplicationCommand{
	ticketCmd,
	setupCmd,
	leaderboardCmd,
}

func (a *App) registerSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Register slash commands for each guild.
	for _, g := range guilds {
		for _, cmd := range slashCommands {
			if _, err := a.Session().ApplicationCommandCreate(ApplicationId, g.ID, cmd); err != nil {
				return fmt.Errorf("error creating %s command for guild %s: %w", cmd.Name, g.ID, err)
			}
		}
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Delete slash commands for each guild.
	for _, guild := range guilds {
		for _, cmd := range slashCommands {
			if err := a.s.ApplicationCommandDelete(ApplicationId, guild.ID, cmd.ID); err != nil {
				return fmt.Errorf("error deleting %s command for guild %s: %w", cmd.Name, guild.ID, err)
			}
		}
	}
	return nil
}

func (a *App) Session() *discordgo.Session {
	return a.s
}

func (a *App) Log() *slog.Logger {
	return a.Logger
}

func (a *App) Claims() *claims.Controller {
	return a.ctrl
}

func (a *App) Scores() *scoring.Engine {
	return a.scores
}

func (a *App) Watchers() *watch.Registry {
	return a.watchers
}

func (a *App) Guilds() dataaccess.GuildDal {
	return a.guilds
}
