package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/shepherd/pkg/dataaccess"
	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/Jacobbrewer1/shepherd/pkg/logging"
	"github.com/Jacobbrewer1/shepherd/pkg/messages"
	"github.com/Jacobbrewer1/shepherd/pkg/watch/monitoring"
)

// maxPollInterval caps how long a watcher sleeps between checks.
const maxPollInterval = time.Minute

// Discord is the slice of the session the registry needs.
type Discord interface {
	// Channel gets a channel by ID.
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// ChannelMessageSend sends a message to a channel.
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Permissions restores snapshotted channel overwrites.
type Permissions interface {
	Restore(ctx context.Context, channelID string, blob []byte) error
}

// Scores awards claim points.
type Scores interface {
	Award(ctx context.Context, claim *entities.Claim) (bool, error)
}

type watcher struct {
	// cancel stops the watcher goroutine.
	cancel context.CancelFunc

	// done closes when the goroutine has exited.
	done chan struct{}
}

// Registry owns one timeout watcher per channel with an open claim. Watchers
// never share memory with each other, only with the registry and the store.
type Registry struct {
	// l is the logger.
	l *slog.Logger

	// s is the discord session.
	s Discord

	// claims is the claim data access layer.
	claims dataaccess.ClaimDal

	// timeouts is the active timeout data access layer.
	timeouts dataaccess.TimeoutDal

	// perms restores channel permissions on resolution.
	perms Permissions

	// scores pays the claimer on a holder timeout.
	scores Scores

	// window is the default inactivity window.
	window time.Duration

	// mu guards watchers and testWindows.
	mu sync.Mutex

	// watchers maps channel ID to its live watcher.
	watchers map[string]*watcher

	// testWindows holds one-shot window overrides, consumed by the next
	// Start for the channel.
	testWindows map[string]time.Duration
}

// NewRegistry creates a new watcher registry.
func NewRegistry(
	l *slog.Logger,
	s Discord,
	claimDal dataaccess.ClaimDal,
	timeouts dataaccess.TimeoutDal,
	perms Permissions,
	scores Scores,
	window time.Duration,
) *Registry {
	return &Registry{
		l:           l.With(slog.String(logging.KeyComponent, "watch")),
		s:           s,
		claims:      claimDal,
		timeouts:    timeouts,
		perms:       perms,
		scores:      scores,
		window:      window,
		watchers:    make(map[string]*watcher),
		testWindows: make(map[string]time.Duration),
	}
}

// SetTestTimeout overrides the inactivity window for exactly the next watcher
// start on the channel.
func (r *Registry) SetTestTimeout(channelID string, window time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testWindows[channelID] = window
}

// Start launches a watcher for the channel. An existing watcher for the same
// channel is cancelled first.
func (r *Registry) Start(channelID string) {
	r.mu.Lock()

	if old, ok := r.watchers[channelID]; ok {
		old.cancel()
	}

	window := r.window
	if override, ok := r.testWindows[channelID]; ok {
		window = override
		delete(r.testWindows, channelID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{cancel: cancel, done: make(chan struct{})}
	r.watchers[channelID] = w
	r.mu.Unlock()

	monitoring.ActiveWatchers.Inc()
	go r.run(ctx, w, channelID, window)
}

// Stop cancels the channel's watcher, if one is running.
func (r *Registry) Stop(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.watchers[channelID]; ok {
		w.cancel()
	}
}

// StopAll cancels every watcher and waits for the goroutines to exit.
func (r *Registry) StopAll() {
	r.mu.Lock()
	done := make([]chan struct{}, 0, len(r.watchers))
	for _, w := range r.watchers {
		w.cancel()
		done = append(done, w.done)
	}
	r.mu.Unlock()

	for _, d := range done {
		<-d
	}
}

// Resume relaunches watchers for every persisted ActiveTimeout. Rows whose
// channel no longer exists are resolved as stale instead. Called once on
// startup; this is the only place watchers are created outside a live claim.
func (r *Registry) Resume(ctx context.Context) error {
	rows, err := r.timeouts.ListTimeouts(ctx)
	if err != nil {
		return fmt.Errorf("error listing active timeouts: %w", err)
	}

	for _, at := range rows {
		if _, err := r.s.Channel(at.ChannelID); err != nil {
			r.l.Warn("Pruning timeout for vanished channel",
				slog.String(logging.KeyChannel, at.ChannelID),
				slog.String(logging.KeyError, err.Error()))
			r.prune(ctx, at.ChannelID)
			continue
		}

		r.Start(at.ChannelID)
	}

	r.l.Info("Watchers resumed", slog.Int("count", len(rows)))
	return nil
}

// prune closes out a timeout row whose channel is gone, keeping the claim and
// timeout rows consistent.
func (r *Registry) prune(ctx context.Context, channelID string) {
	if _, err := r.claims.ResolveOpenClaim(ctx, channelID, true); err != nil {
		if !errors.Is(err, dataaccess.ErrNoOpenClaim) {
			r.l.Error("Error resolving stale claim",
				slog.String(logging.KeyChannel, channelID),
				slog.String(logging.KeyError, err.Error()))
			return
		}
		// Orphaned timeout row with no open claim behind it.
		if err := r.timeouts.RemoveTimeout(ctx, channelID); err != nil {
			r.l.Error("Error removing stale timeout",
				slog.String(logging.KeyChannel, channelID),
				slog.String(logging.KeyError, err.Error()))
		}
	}
}

func (r *Registry) remove(channelID string, w *watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watchers[channelID] == w {
		delete(r.watchers, channelID)
	}
}

func (r *Registry) run(ctx context.Context, w *watcher, channelID string, window time.Duration) {
	defer close(w.done)
	defer monitoring.ActiveWatchers.Dec()
	defer r.remove(channelID, w)

	l := r.l.With(slog.String(logging.KeyChannel, channelID))
	l.Debug("Watcher started", slog.Duration("window", window))

	ticker := time.NewTicker(pollInterval(window))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Debug("Watcher cancelled")
			return
		case <-ticker.C:
		}

		at, err := r.timeouts.GetTimeout(ctx, channelID)
		if err != nil {
			if errors.Is(err, dataaccess.ErrNotFound) {
				// Resolved by another path.
				l.Debug("Timeout row gone, stopping watcher")
				return
			}
			if ctx.Err() != nil {
				l.Debug("Watcher cancelled")
				return
			}
			// Failure, not cancellation. Stop rather than busy-loop
			// against a broken channel.
			l.Error("Error reloading timeout state, stopping watcher",
				slog.String(logging.KeyError, err.Error()))
			return
		}

		party := delinquent(at, time.Now(), window)
		if party == partyNone {
			continue
		}

		r.resolve(ctx, l, channelID, at, party)
		return
	}
}

type party int

const (
	partyNone party = iota
	partyStaff
	partyHolder
)

// delinquent decides whether the claim has timed out and who went silent. A
// timeout fires only once the claim itself is old enough and the staler
// party's last message is outside the window. Equal timestamps blame staff.
func delinquent(at *entities.ActiveTimeout, now time.Time, window time.Duration) party {
	if now.Sub(at.ClaimTime.Time()) < window {
		return partyNone
	}

	staffLast := at.LastStaffMessage.Time()
	holderLast := at.LastHolderMessage.Time()

	if staffLast.After(holderLast) {
		if now.Sub(holderLast) >= window {
			return partyHolder
		}
		return partyNone
	}

	if now.Sub(staffLast) >= window {
		return partyStaff
	}
	return partyNone
}

func (r *Registry) resolve(ctx context.Context, l *slog.Logger, channelID string, at *entities.ActiveTimeout, p party) {
	if err := r.perms.Restore(ctx, channelID, at.OriginalPermissions); err != nil {
		// Data model stays authoritative.
		l.Error("Error restoring permissions on timeout",
			slog.String(logging.KeyError, err.Error()))
	}

	res, err := r.claims.ResolveOpenClaim(ctx, channelID, p == partyStaff)
	if err != nil {
		if errors.Is(err, dataaccess.ErrNoOpenClaim) {
			// A manual unclaim won the race; nothing to re-apply.
			l.Debug("Claim already resolved, timeout is a no-op")
			return
		}
		l.Error("Error resolving claim on timeout",
			slog.String(logging.KeyError, err.Error()))
		return
	}

	switch p {
	case partyStaff:
		monitoring.TimeoutResolutions.WithLabelValues("staff").Inc()
		r.say(l, channelID, fmt.Sprintf(messages.StaffTimeout, mention(at.ClaimerID)))
	case partyHolder:
		monitoring.TimeoutResolutions.WithLabelValues("holder").Inc()
		if _, err := r.scores.Award(ctx, res.Claim); err != nil {
			l.Error("Error awarding point on holder timeout",
				slog.String(logging.KeyUser, res.Claim.ClaimerID),
				slog.String(logging.KeyError, err.Error()))
		}
		r.say(l, channelID, fmt.Sprintf(messages.HolderTimeout,
			mention(at.TicketHolderID), mention(at.ClaimerID)))
	}

	l.Info("Claim resolved by timeout",
		slog.String(logging.KeyUser, at.ClaimerID),
		slog.Bool("staff_timeout", p == partyStaff))
}

func (r *Registry) say(l *slog.Logger, channelID, content string) {
	if _, err := r.s.ChannelMessageSend(channelID, content); err != nil {
		l.Warn("Error sending timeout announcement",
			slog.String(logging.KeyError, err.Error()))
	}
}

func pollInterval(window time.Duration) time.Duration {
	interval := window / 10
	if interval > maxPollInterval {
		interval = maxPollInterval
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func mention(id string) string {
	return "<@" + id + ">"
}
