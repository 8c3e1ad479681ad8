// Package alerts keeps the bounded feed of dashboard notifications.
package alerts

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/models"
)

// DefaultLimit is the number of alerts kept in memory.
const DefaultLimit = 50

// Sink persists alerts outside the process.
type Sink interface {
	InsertAlert(a models.Alert) (int64, error)
	DeleteAlerts() error
}

// Feed is a fixed-size, newest-last list of alerts. It is safe for concurrent use.
type Feed struct {
	sink   Sink
	notify func(models.Alert)
	now    func() time.Time
	items  []models.Alert
	limit  int
	nextID int64
	mu     sync.Mutex
}

// New creates a feed keeping at most limit alerts. sink may be nil.
func New(limit int, sink Sink) *Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}

	return &Feed{
		limit: limit,
		sink:  sink,
		now:   time.Now,
	}
}

// OnAlert registers a callback invoked, outside the feed lock, for each new alert.
func (f *Feed) OnAlert(fn func(models.Alert)) {
	f.mu.Lock()
	f.notify = fn
	f.mu.Unlock()
}

// Restore seeds the feed with previously persisted alerts, oldest first.
func (f *Feed) Restore(history []models.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(history) > f.limit {
		history = history[len(history)-f.limit:]
	}
	f.items = append(f.items[:0], history...)
	for _, a := range history {
		if a.ID >= f.nextID {
			f.nextID = a.ID
		}
	}
}

// Add records a new alert and returns it.
func (f *Feed) Add(level models.AlertLevel, serverID, message string) models.Alert {
	a := models.Alert{
		Time:     f.now(),
		Level:    level,
		ServerID: serverID,
		Message:  message,
	}

	if f.sink != nil {
		id, err := f.sink.InsertAlert(a)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to persist alert")
		}
		a.ID = id
	}

	f.mu.Lock()
	if a.ID == 0 {
		f.nextID++
		a.ID = f.nextID
	} else if a.ID > f.nextID {
		f.nextID = a.ID
	}
	f.items = append(f.items, a)
	if len(f.items) > f.limit {
		f.items = append(f.items[:0], f.items[len(f.items)-f.limit:]...)
	}
	notify := f.notify
	f.mu.Unlock()

	ev := log.Info()
	switch level {
	case models.AlertWarning:
		ev = log.Warn()
	case models.AlertCritical:
		ev = log.Error()
	}
	ev.Str("level", string(level)).Str("server_id", serverID).Msg(message)

	if notify != nil {
		notify(a)
	}

	return a
}

// Recent returns up to n alerts, newest first. n <= 0 returns all.
func (f *Feed) Recent(n int) []models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n <= 0 || n > len(f.items) {
		n = len(f.items)
	}

	out := make([]models.Alert, 0, n)
	for i := len(f.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.items[i])
	}

	return out
}

// Len returns the number of alerts held.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Clear drops every alert, then records that it did so.
func (f *Feed) Clear() {
	if f.sink != nil {
		if err := f.sink.DeleteAlerts(); err != nil {
			log.Warn().Err(err).Msg("Failed to delete persisted alerts")
		}
	}

	f.mu.Lock()
	f.items = f.items[:0]
	f.mu.Unlock()

	f.Add(models.AlertInfo, "", "All alerts cleared")
}
