package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/Jacobbrewer1/shepherd/pkg/custom"
	"github.com/Jacobbrewer1/shepherd/pkg/dataaccess"
	"github.com/Jacobbrewer1/shepherd/pkg/entities"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeStore struct {
	mu       sync.Mutex
	claims   []*entities.Claim
	timeouts map[string]*entities.ActiveTimeout
}

func newFakeStore() *fakeStore {
	return &fakeStore{timeouts: make(map[string]*entities.ActiveTimeout)}
}

func (s *fakeStore) seed(claim *entities.Claim, at *entities.ActiveTimeout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim.ID = primitive.NewObjectID()
	s.claims = append(s.claims, claim)
	s.timeouts[at.ChannelID] = at
}

func (s *fakeStore) OpenClaim(_ context.Context, claim *entities.Claim, at *entities.ActiveTimeout) error {
	s.seed(claim, at)
	return nil
}

func (s *fakeStore) GetOpenClaim(_ context.Context, channelID string) (*entities.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.claims) - 1; i >= 0; i-- {
		if s.claims[i].ChannelID == channelID && !s.claims[i].Completed {
			return s.claims[i], nil
		}
	}
	return nil, dataaccess.ErrNotFound
}

func (s *fakeStore) ResolveOpenClaim(_ context.Context, channelID string, timeoutOccurred bool) (*dataaccess.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.claims) - 1; i >= 0; i-- {
		claim := s.claims[i]
		if claim.ChannelID != channelID || claim.Completed {
			continue
		}
		prior := *claim
		claim.Completed = true
		claim.TimeoutOccurred = timeoutOccurred
		res := &dataaccess.Resolution{Claim: &prior, Timeout: s.timeouts[channelID]}
		delete(s.timeouts, channelID)
		return res, nil
	}
	return nil, dataaccess.ErrNoOpenClaim
}

func (s *fakeStore) GetTimeout(_ context.Context, channelID string) (*entities.ActiveTimeout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.timeouts[channelID]
	if !ok {
		return nil, dataaccess.ErrNotFound
	}
	return at, nil
}

func (s *fakeStore) ListTimeouts(_ context.Context) ([]*entities.ActiveTimeout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.ActiveTimeout, 0, len(s.timeouts))
	for _, at := range s.timeouts {
		out = append(out, at)
	}
	return out, nil
}

func (s *fakeStore) RemoveTimeout(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timeouts, channelID)
	return nil
}

func (s *fakeStore) MarkOfficerUsed(context.Context, string) error { return nil }

func (s *fakeStore) UpdateActivity(context.Context, string, string, custom.Datetime) error {
	return nil
}

func (s *fakeStore) claimFor(channelID string) *entities.Claim {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.claims) - 1; i >= 0; i-- {
		if s.claims[i].ChannelID == channelID {
			return s.claims[i]
		}
	}
	return nil
}

type fakeDiscord struct {
	mu       sync.Mutex
	channels map[string]bool
	sent     []string
}

func (f *fakeDiscord) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if !f.channels[channelID] {
		return nil, errors.New("unknown channel")
	}
	return &discordgo.Channel{ID: channelID}, nil
}

func (f *fakeDiscord) ChannelMessageSend(_, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeDiscord) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakePerms struct {
	mu       sync.Mutex
	restores int
}

func (f *fakePerms) Restore(context.Context, string, []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores++
	return nil
}

type fakeScores struct {
	mu    sync.Mutex
	total int
}

func (f *fakeScores) Award(context.Context, *entities.Claim) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total++
	return true, nil
}

func (f *fakeScores) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func testRegistry(store *fakeStore, d *fakeDiscord, perms *fakePerms, scores *fakeScores, window time.Duration) *Registry {
	return NewRegistry(slog.Default(), d, store, store, perms, scores, window)
}

func dt(t time.Time) custom.Datetime {
	return custom.Datetime(t)
}

func TestDelinquent(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 15 * time.Minute

	tests := []struct {
		name   string
		at     *entities.ActiveTimeout
		now    time.Time
		want   party
	}{
		{
			// Claim at T0, staff last at T0, holder last at T0+1m,
			// evaluated at T0+16m: staff is the staler party and outside
			// the window.
			name: "silent staff times out",
			at: &entities.ActiveTimeout{
				ClaimTime:         dt(t0),
				LastStaffMessage:  dt(t0),
				LastHolderMessage: dt(t0.Add(time.Minute)),
			},
			now:  t0.Add(16 * time.Minute),
			want: partyStaff,
		},
		{
			name: "silent holder times out",
			at: &entities.ActiveTimeout{
				ClaimTime:         dt(t0),
				LastStaffMessage:  dt(t0.Add(14 * time.Minute)),
				LastHolderMessage: dt(t0),
			},
			now:  t0.Add(16 * time.Minute),
			want: partyHolder,
		},
		{
			name: "equal timestamps blame staff",
			at: &entities.ActiveTimeout{
				ClaimTime:         dt(t0),
				LastStaffMessage:  dt(t0),
				LastHolderMessage: dt(t0),
			},
			now:  t0.Add(16 * time.Minute),
			want: partyStaff,
		},
		{
			name: "claim too young",
			at: &entities.ActiveTimeout{
				ClaimTime:         dt(t0),
				LastStaffMessage:  dt(t0),
				LastHolderMessage: dt(t0),
			},
			now:  t0.Add(10 * time.Minute),
			want: partyNone,
		},
		{
			name: "staler party still inside window",
			at: &entities.ActiveTimeout{
				ClaimTime:         dt(t0),
				LastStaffMessage:  dt(t0.Add(5 * time.Minute)),
				LastHolderMessage: dt(t0.Add(6 * time.Minute)),
			},
			now:  t0.Add(16 * time.Minute),
			want: partyNone,
		},
		{
			name: "fresher party silence is ignored",
			at: &entities.ActiveTimeout{
				ClaimTime:         dt(t0),
				LastStaffMessage:  dt(t0),
				LastHolderMessage: dt(t0.Add(2 * time.Minute)),
			},
			now:  t0.Add(15 * time.Minute),
			want: partyStaff,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := delinquent(test.at, test.now, window)
			require.Equal(t, test.want, got)
		})
	}
}

func TestPollInterval(t *testing.T) {
	require.Equal(t, time.Minute, pollInterval(15*time.Minute))
	require.Equal(t, 30*time.Second, pollInterval(5*time.Minute))
	require.Equal(t, time.Second, pollInterval(5*time.Second))
}

func TestRegistry_ResolveStaffTimeout(t *testing.T) {
	store := newFakeStore()
	d := &fakeDiscord{channels: map[string]bool{"ticket1": true}}
	perms := &fakePerms{}
	scores := &fakeScores{}
	r := testRegistry(store, d, perms, scores, 15*time.Minute)

	at := &entities.ActiveTimeout{
		ChannelID:      "ticket1",
		ClaimerID:      "staff1",
		TicketHolderID: "requester1",
	}
	store.seed(&entities.Claim{ChannelID: "ticket1", ClaimerID: "staff1"}, at)

	r.resolve(context.Background(), slog.Default(), "ticket1", at, partyStaff)

	claim := store.claimFor("ticket1")
	require.True(t, claim.Completed)
	require.True(t, claim.TimeoutOccurred)
	require.Equal(t, 1, perms.restores)
	require.Zero(t, scores.count())
	require.Equal(t, 1, d.sentCount())
}

func TestRegistry_ResolveHolderTimeout(t *testing.T) {
	store := newFakeStore()
	d := &fakeDiscord{channels: map[string]bool{"ticket1": true}}
	perms := &fakePerms{}
	scores := &fakeScores{}
	r := testRegistry(store, d, perms, scores, 15*time.Minute)

	at := &entities.ActiveTimeout{
		ChannelID:      "ticket1",
		ClaimerID:      "staff1",
		TicketHolderID: "requester1",
	}
	store.seed(&entities.Claim{ChannelID: "ticket1", ClaimerID: "staff1"}, at)

	r.resolve(context.Background(), slog.Default(), "ticket1", at, partyHolder)

	claim := store.claimFor("ticket1")
	require.True(t, claim.Completed)
	require.False(t, claim.TimeoutOccurred)
	require.Equal(t, 1, scores.count())
	require.Equal(t, 1, d.sentCount())
}

func TestRegistry_ResolveRaceLoserNoOps(t *testing.T) {
	store := newFakeStore()
	d := &fakeDiscord{channels: map[string]bool{"ticket1": true}}
	perms := &fakePerms{}
	scores := &fakeScores{}
	r := testRegistry(store, d, perms, scores, 15*time.Minute)

	// No open claim: a manual unclaim already resolved the channel.
	at := &entities.ActiveTimeout{ChannelID: "ticket1", ClaimerID: "staff1"}
	r.resolve(context.Background(), slog.Default(), "ticket1", at, partyHolder)

	require.Zero(t, scores.count())
	require.Zero(t, d.sentCount())
}

func TestRegistry_WatcherFires(t *testing.T) {
	store := newFakeStore()
	d := &fakeDiscord{channels: map[string]bool{"ticket1": true}}
	perms := &fakePerms{}
	scores := &fakeScores{}
	r := testRegistry(store, d, perms, scores, 15*time.Minute)

	// Already-expired state so the first poll fires.
	old := time.Now().Add(-time.Hour)
	store.seed(
		&entities.Claim{ChannelID: "ticket1", ClaimerID: "staff1"},
		&entities.ActiveTimeout{
			ChannelID:         "ticket1",
			ClaimerID:         "staff1",
			TicketHolderID:    "requester1",
			ClaimTime:         dt(old),
			LastStaffMessage:  dt(old),
			LastHolderMessage: dt(old),
		},
	)

	r.SetTestTimeout("ticket1", 2*time.Second)
	r.Start("ticket1")

	require.Eventually(t, func() bool {
		claim := store.claimFor("ticket1")
		return claim != nil && claim.Completed
	}, 5*time.Second, 50*time.Millisecond)

	// The one-shot override is consumed.
	r.mu.Lock()
	_, pending := r.testWindows["ticket1"]
	r.mu.Unlock()
	require.False(t, pending)
}

func TestRegistry_StopCancelsWatcher(t *testing.T) {
	store := newFakeStore()
	d := &fakeDiscord{channels: map[string]bool{"ticket1": true}}
	r := testRegistry(store, d, &fakePerms{}, &fakeScores{}, 15*time.Minute)

	now := time.Now()
	store.seed(
		&entities.Claim{ChannelID: "ticket1", ClaimerID: "staff1"},
		&entities.ActiveTimeout{
			ChannelID:         "ticket1",
			ClaimTime:         dt(now),
			LastStaffMessage:  dt(now),
			LastHolderMessage: dt(now),
		},
	)

	r.Start("ticket1")
	r.mu.Lock()
	require.Len(t, r.watchers, 1)
	r.mu.Unlock()

	r.Stop("ticket1")

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.watchers) == 0
	}, 2*time.Second, 10*time.Millisecond)

	claim := store.claimFor("ticket1")
	require.False(t, claim.Completed)
}

func TestRegistry_StartReplacesWatcher(t *testing.T) {
	store := newFakeStore()
	d := &fakeDiscord{channels: map[string]bool{"ticket1": true}}
	r := testRegistry(store, d, &fakePerms{}, &fakeScores{}, 15*time.Minute)

	now := time.Now()
	store.seed(
		&entities.Claim{ChannelID: "ticket1", ClaimerID: "staff1"},
		&entities.ActiveTimeout{
			ChannelID:         "ticket1",
			ClaimTime:         dt(now),
			LastStaffMessage:  dt(now),
			LastHolderMessage: dt(now),
		},
	)

	r.Start("ticket1")
	r.mu.Lock()
	first := r.watchers["ticket1"]
	r.mu.Unlock()

	r.Start("ticket1")
	r.mu.Lock()
	second := r.watchers["ticket1"]
	r.mu.Unlock()

	require.NotSame(t, first, second)

	select {
	case <-first.done:
	case <-time.After(2 * time.Second):
		t.Fatal("replaced watcher did not exit")
	}

	r.StopAll()
}

func TestRegistry_Resume(t *testing.T) {
	store := newFakeStore()
	d := &fakeDiscord{channels: map[string]bool{"ticket1": true}}
	r := testRegistry(store, d, &fakePerms{}, &fakeScores{}, 15*time.Minute)

	now := time.Now()
	store.seed(
		&entities.Claim{ChannelID: "ticket1", ClaimerID: "staff1"},
		&entities.ActiveTimeout{
			ChannelID:         "ticket1",
			ClaimTime:         dt(now),
			LastStaffMessage:  dt(now),
			LastHolderMessage: dt(now),
		},
	)
	// A row whose channel has vanished gets pruned, not resumed.
	store.seed(
		&entities.Claim{ChannelID: "gone1", ClaimerID: "staff2"},
		&entities.ActiveTimeout{
			ChannelID:         "gone1",
			ClaimTime:         dt(now),
			LastStaffMessage:  dt(now),
			LastHolderMessage: dt(now),
		},
	)

	require.NoError(t, r.Resume(context.Background()))

	r.mu.Lock()
	require.Len(t, r.watchers, 1)
	require.Contains(t, r.watchers, "ticket1")
	r.mu.Unlock()

	_, err := store.GetTimeout(context.Background(), "gone1")
	require.ErrorIs(t, err, dataaccess.ErrNotFound)
	pruned := store.claimFor("gone1")
	require.True(t, pruned.Completed)
	require.True(t, pruned.TimeoutOccurred)

	r.StopAll()
}
