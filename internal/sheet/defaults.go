package sheet

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/woozymasta/srvdash/internal/models"
)

// Defaults returns the fleet written into a brand new record store.
func Defaults(now time.Time) []models.Server {
	return []models.Server{
		{
			ID: "SRV-001", Name: "Web Server", IP: "192.168.1.10", Location: "Rack A1", Status: models.StatusUp,
			CPU: 45.2, RAM: 62.3, Disk: 78.9, NetIn: 1024, NetOut: 2048, UptimeHours: 720, Score: 85,
			LastChecked: now.Add(-5 * time.Minute),
			Logs:        "System boot successful\nCPU temperature: 65C\nRAM usage normal\nAll services running",
		},
		{
			ID: "SRV-002", Name: "Database Server", IP: "192.168.1.20", Location: "Rack A2", Status: models.StatusUp,
			CPU: 78.5, RAM: 85.7, Disk: 45.2, NetIn: 2048, NetOut: 1024, UptimeHours: 1440, Score: 72,
			LastChecked: now.Add(-12 * time.Minute),
			Logs:        "Database connections: 24\nQuery cache: 12MB\nBackup completed\nIndex optimization done",
		},
		{
			ID: "SRV-003", Name: "File Server", IP: "192.168.1.30", Location: "Rack B1", Status: models.StatusDown,
			Disk: 95.1, LastChecked: now.Add(-27 * time.Minute),
			Logs: "Connection timeout\nLast backup failed\nDisk space critical\nService stopped",
		},
		{
			ID: "SRV-004", Name: "Mail Server", IP: "192.168.1.40", Location: "Rack B2", Status: models.StatusUp,
			CPU: 23.1, RAM: 34.5, Disk: 67.3, NetIn: 512, NetOut: 768, UptimeHours: 168, Score: 92,
			LastChecked: now.Add(-3 * time.Minute),
			Logs:        "Mail queue: 0 messages\nSpam blocked: 3 attempts\nSSL certificate valid\nRelay working",
		},
		{
			ID: "SRV-005", Name: "Backup Server", IP: "192.168.1.50", Location: "Rack C1", Status: models.StatusUp,
			CPU: 12.8, RAM: 28.9, Disk: 23.4, NetIn: 256, NetOut: 128, UptimeHours: 2160, Score: 98,
			LastChecked: now.Add(-18 * time.Minute),
			Logs:        "Backup job completed\nData integrity check passed\nArchive compression: 85%\nRetention policy applied",
		},
	}
}

// Issue is a data problem found in the record store.
type Issue struct {
	ServerID string `json:"server_id"`
	Problem  string `json:"problem"`
	Row      int    `json:"row"`
}

func (i Issue) String() string {
	return fmt.Sprintf("row %d (%s): %s", i.Row, i.ServerID, i.Problem)
}

// Check reports what loading tolerates but the dashboard would never write itself.
// Row numbers are sheet rows, the header being row 1.
func Check(servers []models.Server) []Issue {
	var issues []Issue
	seen := make(map[string]int)

	for i := range servers {
		s := &servers[i]
		row := i + 2
		add := func(format string, args ...interface{}) {
			issues = append(issues, Issue{Row: row, ServerID: s.ID, Problem: fmt.Sprintf(format, args...)})
		}

		if s.ID == "" {
			add("empty ID")
		} else if first, dup := seen[s.ID]; dup {
			add("duplicate ID, first seen on row %d", first)
		} else {
			seen[s.ID] = row
		}

		if addr, err := netip.ParseAddr(s.IP); err != nil || !addr.Is4() {
			add("invalid IPv4 address %q", s.IP)
		}
		if !s.Status.Valid() {
			add("unknown status %q", s.Status)
		}

		for _, m := range []struct {
			name  string
			value float64
		}{{ColCPU, s.CPU}, {ColRAM, s.RAM}, {ColDisk, s.Disk}, {ColScore, s.Score}} {
			if m.value < 0 || m.value > 100 {
				add("%s out of range: %.2f", m.name, m.value)
			}
		}
		if s.NetIn < 0 || s.NetOut < 0 {
			add("negative network counter")
		}
		if s.UptimeHours < 0 {
			add("negative uptime")
		}
	}

	return issues
}
