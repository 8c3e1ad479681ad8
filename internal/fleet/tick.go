package fleet

import (
	"fmt"
	"time"

	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/simulate"
)

// TickResult describes one polling pass.
type TickResult struct {
	Alerts    []models.Alert
	Snapshots []models.Snapshot
	Changed   bool
}

type pendingAlert struct {
	level    models.AlertLevel
	serverID string
	message  string
}

var breachLabels = map[string]string{
	"CPU":  "CPU critical",
	"RAM":  "RAM high",
	"Disk": "Disk full",
}

// Tick runs one polling pass at now: online servers drift or crash, offline ones may recover,
// and every server is marked checked. Servers being restarted are left alone.
// Snapshots cover every server when anything changed.
func (f *Fleet) Tick(now time.Time) TickResult {
	var (
		res     TickResult
		pending []pendingAlert
	)

	f.mu.Lock()
	for i := range f.servers {
		s := &f.servers[i]
		if f.restarting[s.ID] {
			continue
		}

		if s.Online() {
			if !s.LastChecked.IsZero() && now.After(s.LastChecked) {
				s.UptimeHours += now.Sub(s.LastChecked).Hours()
			}

			if simulate.Chance(f.rng, simulate.DriftChance) {
				res.Changed = true
				simulate.Drift(f.rng, s)
				for _, b := range simulate.Breaches(s) {
					pending = append(pending, pendingAlert{
						level:    b.Level,
						serverID: s.ID,
						message:  fmt.Sprintf("%s: %s (%s) at %.1f%%", breachLabels[b.Resource], s.ID, s.Name, b.Value),
					})
				}
			}

			if simulate.Chance(f.rng, simulate.CrashChance) {
				res.Changed = true
				simulate.Crash(s)
				pending = append(pending, pendingAlert{
					level:    models.AlertCritical,
					serverID: s.ID,
					message:  fmt.Sprintf("Server down: %s (%s) went down unexpectedly", s.ID, s.Name),
				})
			}
		} else if simulate.Chance(f.rng, simulate.RecoverChance) {
			res.Changed = true
			simulate.Recover(f.rng, s)
			pending = append(pending, pendingAlert{
				level:    models.AlertSuccess,
				serverID: s.ID,
				message:  fmt.Sprintf("Recovery: %s (%s) is back online", s.ID, s.Name),
			})
		}

		s.LastChecked = now
	}

	if res.Changed {
		res.Snapshots = make([]models.Snapshot, 0, len(f.servers))
		for i := range f.servers {
			res.Snapshots = append(res.Snapshots, models.SnapshotOf(&f.servers[i]))
		}
	}
	f.mu.Unlock()

	for _, p := range pending {
		res.Alerts = append(res.Alerts, f.alerts.Add(p.level, p.serverID, p.message))
	}
	if res.Changed {
		f.changed()
	}

	return res
}
