package fleet

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/sheet"
	"github.com/woozymasta/srvdash/internal/simulate"
)

// Add creates a server from form and returns it.
func (f *Fleet) Add(form models.ServerForm) (models.Server, error) {
	name := strings.TrimSpace(form.Name)
	ip := strings.TrimSpace(form.IP)
	if err := validate(name, ip); err != nil {
		return models.Server{}, err
	}

	status := form.Status
	if status == "" {
		status = models.StatusUp
	}
	if !status.Valid() {
		return models.Server{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	location := strings.TrimSpace(form.Location)
	if location == "" {
		location = "Unknown"
	}

	var country string
	if f.locator != nil {
		country = f.locator.Country(ip)
	}

	f.mu.Lock()

	now := f.now()
	id := strings.TrimSpace(form.ID)
	if id == "" {
		id = f.nextID()
	} else if f.index(id) >= 0 {
		f.mu.Unlock()
		return models.Server{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	s := models.Server{
		ID:          id,
		Name:        name,
		IP:          ip,
		Location:    location,
		Country:     country,
		Status:      status,
		LastChecked: now,
	}

	if status == models.StatusUp && enabled(form.AutoMetrics) {
		simulate.Provision(f.rng, &s)
	}

	switch {
	case !enabled(form.AutoLogs):
		appendLog(&s, stamp(now, "Server added to the system"))
	case status == models.StatusUp:
		appendLog(&s,
			stamp(now, "Server created and added to the system"),
			stamp(now, "Initial configuration complete"),
			stamp(now, "Base services enabled"),
			stamp(now, "Operating system functional"),
			stamp(now, "Monitoring enabled"),
		)
	default:
		appendLog(&s,
			stamp(now, "Server created in the system"),
			stamp(now, "Status: offline"),
			stamp(now, "Waiting for system start"),
		)
	}

	f.servers = append(f.servers, s)
	f.mu.Unlock()

	_ = f.Persist(false)
	f.alerts.Add(models.AlertSuccess, s.ID, fmt.Sprintf("Server added: %s (%s)", s.ID, s.Name))
	f.changed()

	return s, nil
}

// Edit applies form to the server with the given ID. The ID itself never changes.
func (f *Fleet) Edit(id string, form models.ServerForm) (models.Server, error) {
	name := strings.TrimSpace(form.Name)
	ip := strings.TrimSpace(form.IP)
	if err := validate(name, ip); err != nil {
		return models.Server{}, err
	}
	if form.Status != "" && !form.Status.Valid() {
		return models.Server{}, fmt.Errorf("%w: unknown status %q", ErrValidation, form.Status)
	}

	var country string
	if f.locator != nil {
		country = f.locator.Country(ip)
	}

	f.mu.Lock()

	i := f.index(id)
	if i < 0 {
		f.mu.Unlock()
		return models.Server{}, ErrNotFound
	}
	s := &f.servers[i]

	location := strings.TrimSpace(form.Location)
	if location == "" {
		location = s.Location
	}
	status := form.Status
	if status == "" {
		status = s.Status
	}

	var changes []string
	if name != s.Name {
		changes = append(changes, fmt.Sprintf("Name: %s -> %s", s.Name, name))
	}
	if ip != s.IP {
		changes = append(changes, fmt.Sprintf("IP: %s -> %s", s.IP, ip))
	}
	if location != s.Location {
		changes = append(changes, fmt.Sprintf("Location: %s -> %s", s.Location, location))
	}
	if status != s.Status {
		changes = append(changes, fmt.Sprintf("Status: %s -> %s", s.Status, status))
	}

	if len(changes) == 0 && !form.ResetMetrics {
		f.mu.Unlock()
		return models.Server{}, ErrNoChanges
	}

	oldStatus := s.Status
	s.Name = name
	s.IP = ip
	s.Location = location
	s.Status = status
	if f.locator != nil {
		s.Country = country
	}

	switch {
	case oldStatus == models.StatusDown && status == models.StatusUp:
		simulate.BringUp(f.rng, s)
	case oldStatus == models.StatusUp && status == models.StatusDown:
		simulate.Zero(s)
	}

	if form.ResetMetrics && status == models.StatusUp {
		simulate.Reset(f.rng, s)
		changes = append(changes, "Metrics reset")
	}

	now := f.now()
	s.LastChecked = now

	lines := []string{stamp(now, "Properties edited manually")}
	for _, c := range changes {
		lines = append(lines, "  - "+c)
	}
	appendLog(s, lines...)

	out := *s
	f.mu.Unlock()

	summary := changes
	if len(summary) > 2 {
		summary = summary[:2]
	}
	if len(summary) == 0 {
		summary = []string{"no property changed"}
	}

	_ = f.Persist(false)
	f.alerts.Add(models.AlertInfo, id, fmt.Sprintf("Server edited: %s - %s", id, strings.Join(summary, " | ")))
	f.changed()

	return out, nil
}

// Delete removes the server with the given ID.
func (f *Fleet) Delete(id string) error {
	f.mu.Lock()
	i := f.index(id)
	if i < 0 {
		f.mu.Unlock()
		return ErrNotFound
	}
	name := f.servers[i].Name
	f.servers = append(f.servers[:i], f.servers[i+1:]...)
	f.mu.Unlock()

	f.alerts.Add(models.AlertWarning, id, fmt.Sprintf("Server deleted: %s (%s)", id, name))
	_ = f.Persist(false)
	f.changed()

	return nil
}

// Refresh probes the server with the given ID and returns its new state.
func (f *Fleet) Refresh(id string) (models.Server, error) {
	f.mu.Lock()
	i := f.index(id)
	if i < 0 {
		f.mu.Unlock()
		return models.Server{}, ErrNotFound
	}
	s := &f.servers[i]

	old := s.Status
	current := simulate.Probe(f.rng, s)
	s.LastChecked = f.now()
	out := *s
	f.mu.Unlock()

	switch {
	case old == current:
	case current == models.StatusDown:
		f.alerts.Add(models.AlertCritical, id, fmt.Sprintf("Alert: %s (%s) is OFFLINE", id, out.Name))
	default:
		f.alerts.Add(models.AlertInfo, id, fmt.Sprintf("Recovery: %s (%s) is ONLINE", id, out.Name))
	}

	_ = f.Persist(false)
	f.changed()

	return out, nil
}

// nextID returns the first free SRV-NNN identifier. Callers hold mu.
func (f *Fleet) nextID() string {
	used := make(map[string]bool, len(f.servers))
	for i := range f.servers {
		used[f.servers[i].ID] = true
	}

	if id, ok := sheet.FreeID(used); ok {
		return id
	}

	return fmt.Sprintf("SRV-%d", f.now().Unix()%10000)
}

func validate(name, ip string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if ip == "" {
		return fmt.Errorf("%w: IP address is required", ErrValidation)
	}
	if addr, err := netip.ParseAddr(ip); err != nil || !addr.Is4() {
		return fmt.Errorf("%w: %q is not an IPv4 address", ErrValidation, ip)
	}
	return nil
}

func enabled(b *bool) bool {
	return b == nil || *b
}
