// Package models defines the records shared by the record store, the journal and the HTTP API.
package models

import "time"

// Status is the reachability state of a server.
type Status string

const (
	// StatusUp marks an online server.
	StatusUp Status = "up"

	// StatusDown marks an offline server.
	StatusDown Status = "down"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusUp || s == StatusDown
}

// Server is one row of the record store.
type Server struct {
	LastChecked time.Time `json:"last_checked"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IP          string    `json:"ip"`
	Location    string    `json:"location"`
	Country     string    `json:"country,omitempty"`
	Status      Status    `json:"status"`
	Logs        string    `json:"logs"`
	CPU         float64   `json:"cpu_usage"`
	RAM         float64   `json:"ram_usage"`
	Disk        float64   `json:"disk_usage"`
	UptimeHours float64   `json:"uptime_hours"`
	Score       float64   `json:"performance_score"`
	NetIn       int64     `json:"network_in"`
	NetOut      int64     `json:"network_out"`

	// Extra holds record store columns the dashboard does not manage, in file order.
	Extra []Cell `json:"-"`
}

// Cell is one value of an unmanaged record store column.
type Cell struct {
	Header string
	Value  string
}

// Online reports whether the server is up.
func (s *Server) Online() bool {
	return s.Status == StatusUp
}

// Critical reports whether any resource is above the critical line (90%).
func (s *Server) Critical() bool {
	return s.CPU > 90 || s.RAM > 90 || s.Disk > 90
}

// ServerForm is the input of the add and edit operations.
type ServerForm struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Location string `json:"location"`
	Status   Status `json:"status"`

	// AutoMetrics generates plausible metrics for a new online server. Nil means true.
	AutoMetrics *bool `json:"auto_metrics,omitempty"`

	// AutoLogs writes the initial provisioning log lines. Nil means true.
	AutoLogs *bool `json:"auto_logs,omitempty"`

	// ResetMetrics regenerates metrics of an online server on edit.
	ResetMetrics bool `json:"reset_metrics,omitempty"`
}

// AlertLevel classifies an alert.
type AlertLevel string

// Alert levels.
const (
	AlertInfo     AlertLevel = "info"
	AlertSuccess  AlertLevel = "success"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is a dashboard notification.
type Alert struct {
	Time     time.Time  `json:"time"`
	Level    AlertLevel `json:"level"`
	ServerID string     `json:"server_id,omitempty"`
	Message  string     `json:"message"`
	ID       int64      `json:"id"`
}

// Summary aggregates the fleet for the dashboard header.
type Summary struct {
	Total       int     `json:"total_servers"`
	Online      int     `json:"online_servers"`
	Offline     int     `json:"offline_servers"`
	Critical    int     `json:"critical_servers"`
	AvgCPU      float64 `json:"avg_cpu"`
	AvgRAM      float64 `json:"avg_ram"`
	AvgScore    float64 `json:"avg_performance"`
	TotalUptime float64 `json:"total_uptime"`
}

// Summarize computes the header metrics. Averages cover online servers only.
func Summarize(servers []Server) Summary {
	var sum Summary
	sum.Total = len(servers)

	for i := range servers {
		s := &servers[i]
		if s.Critical() {
			sum.Critical++
		}
		if !s.Online() {
			sum.Offline++
			continue
		}

		sum.Online++
		sum.AvgCPU += s.CPU
		sum.AvgRAM += s.RAM
		sum.AvgScore += s.Score
		sum.TotalUptime += s.UptimeHours
	}

	if sum.Online > 0 {
		n := float64(sum.Online)
		sum.AvgCPU /= n
		sum.AvgRAM /= n
		sum.AvgScore /= n
	}

	return sum
}

// Snapshot is one point of a server metric history.
type Snapshot struct {
	Time     time.Time `json:"time"`
	ServerID string    `json:"server_id"`
	Status   Status    `json:"status"`
	CPU      float64   `json:"cpu_usage"`
	RAM      float64   `json:"ram_usage"`
	Disk     float64   `json:"disk_usage"`
	Score    float64   `json:"performance_score"`
	NetIn    int64     `json:"network_in"`
	NetOut   int64     `json:"network_out"`
}

// SnapshotOf captures the current metrics of s.
func SnapshotOf(s *Server) Snapshot {
	return Snapshot{
		Time:     s.LastChecked,
		ServerID: s.ID,
		Status:   s.Status,
		CPU:      s.CPU,
		RAM:      s.RAM,
		Disk:     s.Disk,
		Score:    s.Score,
		NetIn:    s.NetIn,
		NetOut:   s.NetOut,
	}
}
