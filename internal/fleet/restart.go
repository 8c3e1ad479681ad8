package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/simulate"
)

// Restart takes the server down at once and brings it back after a random delay.
// It returns as soon as the server is down; the boot phase runs in the background
// until ctx is cancelled or the fleet is closed.
func (f *Fleet) Restart(ctx context.Context, id string) error {
	f.mu.Lock()
	i := f.index(id)
	if i < 0 {
		f.mu.Unlock()
		return ErrNotFound
	}
	if f.restarting[id] {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRestartInProgress, id)
	}

	s := &f.servers[i]
	name := s.Name
	s.Status = models.StatusDown
	s.LastChecked = f.now()
	delay := uniformDuration(f.rng, f.restartMin, f.restartMax)
	f.restarting[id] = true
	f.wg.Add(1)
	f.mu.Unlock()

	f.alerts.Add(models.AlertWarning, id, fmt.Sprintf("Restart initiated: %s (%s)", id, name))
	f.changed()

	go f.boot(ctx, id, name, delay)

	return nil
}

// Restarting reports whether a restart of id is pending.
func (f *Fleet) Restarting(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restarting[id]
}

func (f *Fleet) boot(ctx context.Context, id, name string, delay time.Duration) {
	defer f.wg.Done()
	defer func() {
		f.mu.Lock()
		delete(f.restarting, id)
		f.mu.Unlock()
	}()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		log.Warn().Str("server_id", id).Msg("Restart cancelled")
		return
	case <-f.done:
		log.Warn().Str("server_id", id).Msg("Restart cancelled by shutdown")
		return
	}

	f.mu.Lock()
	i := f.index(id)
	if i < 0 {
		f.mu.Unlock()
		log.Warn().Str("server_id", id).Msg("Server removed during restart")
		return
	}

	s := &f.servers[i]
	now := f.now()
	simulate.Boot(f.rng, s)
	s.LastChecked = now
	appendLog(s,
		stamp(now, "System restart completed"),
		"Services reloaded",
		"Memory cleared",
		"Performance optimized",
	)
	f.mu.Unlock()

	_ = f.Persist(false)
	f.alerts.Add(models.AlertSuccess, id, fmt.Sprintf("Restart complete: %s (%s) is online and optimized", id, name))
	f.changed()
}
