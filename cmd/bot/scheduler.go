package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/Jacobbrewer1/shepherd/pkg/logging"
)

// scheduler fires the daily and weekly leaderboard resets at midnight UTC.
// The standings are broadcast before the daily counters are zeroed.
type scheduler struct {
	// a is the application.
	a IApp

	// stopChan signals the loop to exit.
	stopChan chan struct{}

	// doneChan closes when the loop has exited.
	doneChan chan struct{}
}

func newScheduler(a IApp) *scheduler {
	return &scheduler{
		a:        a,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func (s *scheduler) start() {
	go s.loop()
}

func (s *scheduler) stop() {
	close(s.stopChan)
	<-s.doneChan
}

func (s *scheduler) loop() {
	defer close(s.doneChan)

	for {
		next := nextMidnight(time.Now().UTC())
		s.a.Log().Debug("Next leaderboard reset scheduled",
			slog.Time("at", next))

		select {
		case <-s.stopChan:
			return
		case <-time.After(time.Until(next)):
		}

		s.runResets(next)
	}
}

func (s *scheduler) runResets(at time.Time) {
	ctx := context.Background()

	// Broadcast the standings before the daily counters go.
	broadcastLeaderboards(s.a)

	if err := s.a.Scores().ResetDaily(ctx); err != nil {
		s.a.Log().Error("Error running daily reset", slog.String(logging.KeyError, err.Error()))
	}

	if at.Weekday() == time.Monday {
		if err := s.a.Scores().ResetWeekly(ctx); err != nil {
			s.a.Log().Error("Error running weekly reset", slog.String(logging.KeyError, err.Error()))
		}
	}
}

// nextMidnight is the first midnight strictly after t.
func nextMidnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
