// Package fleet owns the in-memory server table: every read and mutation of the
// dashboard goes through a Fleet, which persists to the record store and raises alerts.
package fleet

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/alerts"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/sheet"
)

// DefaultPageSize is the number of servers shown per dashboard page.
const DefaultPageSize = 6

var (
	// ErrNotFound is returned when no server has the requested ID.
	ErrNotFound = errors.New("server not found")

	// ErrDuplicateID is returned when adding a server with an ID already in use.
	ErrDuplicateID = errors.New("server ID already exists")

	// ErrValidation wraps every rejected form field.
	ErrValidation = errors.New("invalid server data")

	// ErrNoChanges is returned by Edit when the form matches the stored server.
	ErrNoChanges = errors.New("no changes")

	// ErrRestartInProgress is returned when the server is already restarting.
	ErrRestartInProgress = errors.New("restart already in progress")
)

// Store is the persistent table behind a Fleet.
type Store interface {
	Load() ([]models.Server, error)
	Save([]models.Server) error
}

// Locator resolves the country of an IP address.
type Locator interface {
	Country(ip string) string
}

// Options tune a Fleet. Zero values select the defaults.
type Options struct {
	Rand    *rand.Rand
	Locator Locator
	Now     func() time.Time

	// RestartMin and RestartMax bound the simulated restart duration.
	RestartMin time.Duration
	RestartMax time.Duration

	PageSize int
}

// Page is one dashboard page of servers.
type Page struct {
	Servers []models.Server `json:"servers"`
	Page    int             `json:"page"`
	Pages   int             `json:"pages"`
	Total   int             `json:"total"`
}

// Fleet is the live server table.
type Fleet struct {
	store   Store
	alerts  *alerts.Feed
	rng     *rand.Rand
	locator Locator
	now     func() time.Time

	done       chan struct{}
	restarting map[string]bool
	listeners  []func()
	servers    []models.Server

	restartMin time.Duration
	restartMax time.Duration
	pageSize   int

	wg        sync.WaitGroup
	mu        sync.Mutex
	saveMu    sync.Mutex
	closeOnce sync.Once
}

// New loads the table from store and returns a ready Fleet.
func New(store Store, feed *alerts.Feed, opts Options) (*Fleet, error) {
	f := &Fleet{
		store:      store,
		alerts:     feed,
		rng:        opts.Rand,
		locator:    opts.Locator,
		now:        opts.Now,
		restartMin: opts.RestartMin,
		restartMax: opts.RestartMax,
		pageSize:   opts.PageSize,
		done:       make(chan struct{}),
		restarting: make(map[string]bool),
	}

	if f.alerts == nil {
		f.alerts = alerts.New(alerts.DefaultLimit, nil)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.restartMin <= 0 {
		f.restartMin = 3 * time.Second
	}
	if f.restartMax < f.restartMin {
		f.restartMax = f.restartMin + 5*time.Second
	}
	if f.pageSize <= 0 {
		f.pageSize = DefaultPageSize
	}

	servers, err := store.Load()
	if err != nil {
		return nil, err
	}
	f.servers = servers

	return f, nil
}

// Alerts returns the alert feed of the fleet.
func (f *Fleet) Alerts() *alerts.Feed {
	return f.alerts
}

// OnChange registers fn to be called after every change of the table.
func (f *Fleet) OnChange(fn func()) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// List returns a copy of every server in table order.
func (f *Fleet) List() []models.Server {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Server, len(f.servers))
	copy(out, f.servers)
	return out
}

// Page returns page n (1-based). Pages past the end are empty.
func (f *Fleet) Page(n int) Page {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := len(f.servers)
	pages := (total + f.pageSize - 1) / f.pageSize
	if pages == 0 {
		pages = 1
	}
	if n < 1 {
		n = 1
	}

	p := Page{Page: n, Pages: pages, Total: total, Servers: []models.Server{}}
	start := (n - 1) * f.pageSize
	if start >= total {
		return p
	}
	end := min(start+f.pageSize, total)
	p.Servers = append(p.Servers, f.servers[start:end]...)

	return p
}

// Get returns a copy of the server with the given ID.
func (f *Fleet) Get(id string) (models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.index(id)
	if i < 0 {
		return models.Server{}, ErrNotFound
	}
	return f.servers[i], nil
}

// Summary aggregates the current table.
func (f *Fleet) Summary() models.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.Summarize(f.servers)
}

// Reload replaces the table with the content of the record store.
func (f *Fleet) Reload() error {
	servers, err := f.store.Load()
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.servers = servers
	f.mu.Unlock()

	f.alerts.Add(models.AlertInfo, "", "Data reloaded from record store")
	f.changed()

	return nil
}

// Persist writes the table to the record store. A locked store keeps the data
// in memory; the next mutation saves again. Unless silent, failures also raise an alert.
func (f *Fleet) Persist(silent bool) error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	servers := f.List()

	err := f.store.Save(servers)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sheet.ErrLocked):
		log.Warn().Err(err).Msg("Record store locked, changes kept in memory")
	default:
		log.Error().Err(err).Msg("Failed to save record store")
	}

	if !silent {
		f.alerts.Add(models.AlertWarning, "", "Changes not saved: "+err.Error())
	}

	return err
}

// Close cancels pending restarts and waits for them to stop.
func (f *Fleet) Close() {
	f.closeOnce.Do(func() { close(f.done) })
	f.wg.Wait()
}

func (f *Fleet) index(id string) int {
	for i := range f.servers {
		if f.servers[i].ID == id {
			return i
		}
	}
	return -1
}

// changed notifies listeners. It must be called without holding mu.
func (f *Fleet) changed() {
	f.mu.Lock()
	listeners := append([]func(){}, f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// stamp prefixes a log line with the record store timestamp format.
func stamp(t time.Time, line string) string {
	return "[" + t.Format(sheet.TimeLayout) + "] " + line
}

func appendLog(s *models.Server, lines ...string) {
	for _, l := range lines {
		if s.Logs != "" {
			s.Logs += "\n"
		}
		s.Logs += l
	}
}

// uniformDuration picks a duration in [lo, hi].
func uniformDuration(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
}
