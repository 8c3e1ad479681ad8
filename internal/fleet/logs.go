package fleet

import (
	"fmt"

	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/simulate"
)

// SetLogs replaces the log text of a server and stamps the manual edit.
func (f *Fleet) SetLogs(id, text string) (models.Server, error) {
	return f.updateLogs(id, func(s *models.Server) {
		s.Logs = text
		appendLog(s, stamp(s.LastChecked, "Logs edited manually"))
	}, fmt.Sprintf("Logs edited: %s", id))
}

// AppendLog adds one canned health-check entry to the server logs.
func (f *Fleet) AppendLog(id string) (models.Server, error) {
	return f.updateLogs(id, func(s *models.Server) {
		appendLog(s, stamp(s.LastChecked, simulate.LogEntry(f.rng)))
	}, "")
}

// ClearLogs replaces the server logs with a single cleared stamp.
func (f *Fleet) ClearLogs(id string) (models.Server, error) {
	return f.updateLogs(id, func(s *models.Server) {
		s.Logs = stamp(s.LastChecked, "Logs cleared")
	}, fmt.Sprintf("Logs cleared: %s", id))
}

func (f *Fleet) updateLogs(id string, apply func(*models.Server), alert string) (models.Server, error) {
	f.mu.Lock()
	i := f.index(id)
	if i < 0 {
		f.mu.Unlock()
		return models.Server{}, ErrNotFound
	}

	s := &f.servers[i]
	s.LastChecked = f.now()
	apply(s)
	out := *s
	f.mu.Unlock()

	_ = f.Persist(false)
	if alert != "" {
		f.alerts.Add(models.AlertInfo, id, alert)
	}
	f.changed()

	return out, nil
}
