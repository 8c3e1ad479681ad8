// Package monitor runs the background polling loop that keeps the simulated fleet moving.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/fleet"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/sheet"
)

// Default timings of the loop.
const (
	DefaultInterval     = 15 * time.Second
	DefaultErrorBackoff = 30 * time.Second
	pruneEvery          = time.Hour
)

// Ticker is the fleet side of the loop.
type Ticker interface {
	Tick(now time.Time) fleet.TickResult
	Persist(silent bool) error
}

// Journal records metric history.
type Journal interface {
	InsertSnapshots(batch []models.Snapshot) error
	Prune(before time.Time) (int64, error)
}

// Options tune a Monitor.
type Options struct {
	Now          func() time.Time
	Interval     time.Duration
	ErrorBackoff time.Duration

	// Retention drops journal rows older than this once an hour. Zero keeps everything.
	Retention time.Duration
}

// Monitor drives periodic fleet ticks.
type Monitor struct {
	fleet     Ticker
	journal   Journal
	now       func() time.Time
	lastPrune time.Time
	interval  time.Duration
	backoff   time.Duration
	retention time.Duration
}

// New creates a monitor. journal may be nil.
func New(f Ticker, journal Journal, opts Options) *Monitor {
	m := &Monitor{
		fleet:     f,
		journal:   journal,
		now:       opts.Now,
		interval:  opts.Interval,
		backoff:   opts.ErrorBackoff,
		retention: opts.Retention,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.backoff <= 0 {
		m.backoff = DefaultErrorBackoff
	}

	return m
}

// Run ticks until ctx is cancelled. A failed pass waits for the error backoff instead of the interval.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info().Dur("interval", m.interval).Msg("Monitor started")
	defer log.Info().Msg("Monitor stopped")

	wait := m.interval
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := m.Step(); err != nil {
			log.Error().Err(err).Dur("backoff", m.backoff).Msg("Monitor pass failed")
			wait = m.backoff
			continue
		}
		wait = m.interval
	}
}

// Step runs a single pass: tick, save and journal when anything changed.
func (m *Monitor) Step() error {
	now := m.now()
	res := m.fleet.Tick(now)

	if res.Changed {
		log.Debug().Int("alerts", len(res.Alerts)).Msg("Fleet changed")

		if err := m.fleet.Persist(true); err != nil && !errors.Is(err, sheet.ErrLocked) {
			return fmt.Errorf("save: %w", err)
		}

		if m.journal != nil {
			if err := m.journal.InsertSnapshots(res.Snapshots); err != nil {
				return fmt.Errorf("journal: %w", err)
			}
		}
	}

	if m.journal != nil && m.retention > 0 && now.Sub(m.lastPrune) >= pruneEvery {
		n, err := m.journal.Prune(now.Add(-m.retention))
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		m.lastPrune = now
		if n > 0 {
			log.Info().Int64("rows", n).Msg("Journal pruned")
		}
	}

	return nil
}
