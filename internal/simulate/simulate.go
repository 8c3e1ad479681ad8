// Package simulate holds the randomized rules that stand in for real telemetry.
// Every function takes the random source explicitly so callers control seeding and locking.
package simulate

import (
	"math/rand"

	"github.com/woozymasta/srvdash/internal/models"
)

// Alert thresholds, in percent.
const (
	CPUCritical  = 90.0
	RAMWarning   = 85.0
	DiskCritical = 90.0
)

// Transition probabilities used by the polling loop and the manual refresh.
const (
	DriftChance     = 0.30
	CrashChance     = 0.01
	RecoverChance   = 0.05
	ProbeStayUp     = 0.90
	ProbeComeBackUp = 0.30
)

var logEntries = []string{
	"Service health check completed",
	"Memory usage optimized",
	"Network connectivity verified",
	"Security scan passed",
	"Backup integrity verified",
	"Performance metrics updated",
	"System temperature normal",
	"Database connection pool refreshed",
}

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Score derives the performance score from resource usage: the busier, the lower.
func Score(cpu, ram, disk float64) float64 {
	return Clamp(100-((cpu+ram+disk)/3*0.5), 0, 100)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func intn(rng *rand.Rand, lo, hi int64) int64 {
	return lo + rng.Int63n(hi-lo+1)
}

// Chance returns true with probability p.
func Chance(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

// Drift nudges the metrics of an online server.
func Drift(rng *rand.Rand, s *models.Server) {
	s.CPU = Clamp(s.CPU+uniform(rng, -5, 5), 5, 98)
	s.RAM = Clamp(s.RAM+uniform(rng, -3, 3), 10, 95)
	s.Disk = Clamp(s.Disk+uniform(rng, -1, 1), 20, 99)
	s.Score = Score(s.CPU, s.RAM, s.Disk)
	s.NetIn = intn(rng, 100, 3000)
	s.NetOut = intn(rng, 100, 2500)
}

// Crash takes a server down. Disk usage survives, it is state on disk.
func Crash(s *models.Server) {
	s.Status = models.StatusDown
	s.CPU = 0
	s.RAM = 0
	s.NetIn = 0
	s.NetOut = 0
	s.Score = 0
}

// Recover brings a crashed server back online.
func Recover(rng *rand.Rand, s *models.Server) {
	s.Status = models.StatusUp
	s.CPU = uniform(rng, 10, 40)
	s.RAM = uniform(rng, 20, 60)
	s.NetIn = intn(rng, 100, 1000)
	s.NetOut = intn(rng, 100, 800)
	s.Score = uniform(rng, 70, 95)
	s.UptimeHours = 0
}

// Probe emulates a manual status check and returns the new status.
func Probe(rng *rand.Rand, s *models.Server) models.Status {
	stay := ProbeStayUp
	if !s.Online() {
		stay = ProbeComeBackUp
	}

	if Chance(rng, stay) {
		s.Status = models.StatusUp
	} else {
		s.Status = models.StatusDown
	}

	if s.Online() {
		s.CPU = uniform(rng, 10, 95)
		s.RAM = uniform(rng, 20, 90)
		s.Disk = uniform(rng, 30, 95)
		s.NetIn = intn(rng, 100, 5000)
		s.NetOut = intn(rng, 100, 5000)
		s.Score = Score(s.CPU, s.RAM, s.Disk)
	} else {
		s.CPU = 0
		s.RAM = 0
		s.Disk = 0
		s.NetIn = 0
		s.NetOut = 0
		s.Score = 0
	}

	return s.Status
}

// Boot applies the post-restart state: light load, fresh uptime, score of at least 70.
func Boot(rng *rand.Rand, s *models.Server) {
	s.Status = models.StatusUp
	s.CPU = uniform(rng, 5, 30)
	s.RAM = uniform(rng, 15, 50)
	s.NetIn = intn(rng, 50, 1000)
	s.NetOut = intn(rng, 50, 1000)
	s.UptimeHours = 0
	if s.Disk <= 0 {
		s.Disk = uniform(rng, 30, 70)
	}
	s.Score = Clamp(Score(s.CPU, s.RAM, s.Disk), 70, 100)
}

// Provision fills the metrics of a freshly added online server.
func Provision(rng *rand.Rand, s *models.Server) {
	s.CPU = uniform(rng, 10, 60)
	s.RAM = uniform(rng, 20, 70)
	s.Disk = uniform(rng, 30, 80)
	s.NetIn = intn(rng, 100, 2000)
	s.NetOut = intn(rng, 100, 2000)
	s.UptimeHours = uniform(rng, 1, 100)
	s.Score = uniform(rng, 70, 95)
}

// BringUp fills the metrics of a server switched from down to up by hand.
func BringUp(rng *rand.Rand, s *models.Server) {
	s.CPU = uniform(rng, 10, 50)
	s.RAM = uniform(rng, 20, 60)
	s.Disk = uniform(rng, 30, 70)
	s.NetIn = intn(rng, 100, 1500)
	s.NetOut = intn(rng, 100, 1500)
	s.Score = uniform(rng, 70, 95)
	s.UptimeHours = 0
}

// Reset regenerates a calm metric set for an online server.
func Reset(rng *rand.Rand, s *models.Server) {
	s.CPU = uniform(rng, 10, 30)
	s.RAM = uniform(rng, 15, 40)
	s.Disk = uniform(rng, 20, 50)
	s.NetIn = intn(rng, 100, 1000)
	s.NetOut = intn(rng, 100, 1000)
	s.Score = uniform(rng, 80, 98)
	s.UptimeHours = 0
}

// Zero clears every metric.
func Zero(s *models.Server) {
	s.CPU = 0
	s.RAM = 0
	s.Disk = 0
	s.NetIn = 0
	s.NetOut = 0
	s.Score = 0
	s.UptimeHours = 0
}

// Backfill returns a plausible value for a metric column missing from an older sheet.
func Backfill(rng *rand.Rand, column string, status models.Status) float64 {
	if status != models.StatusUp {
		return 0
	}

	switch column {
	case "CPU_Usage":
		return uniform(rng, 10, 80)
	case "RAM_Usage":
		return uniform(rng, 20, 70)
	case "Disk_Usage":
		return uniform(rng, 30, 90)
	case "Uptime_Hours":
		return uniform(rng, 1, 2000)
	case "Performance_Score":
		return uniform(rng, 60, 95)
	case "Network_In", "Network_Out":
		return float64(intn(rng, 100, 2000))
	default:
		return 0
	}
}

// LogEntry picks one of the canned health-check lines.
func LogEntry(rng *rand.Rand) string {
	return logEntries[rng.Intn(len(logEntries))]
}

// Threshold is a breached resource limit.
type Threshold struct {
	Resource string
	Value    float64
	Level    models.AlertLevel
}

// Breaches lists the thresholds s currently exceeds.
func Breaches(s *models.Server) []Threshold {
	var out []Threshold
	if s.CPU > CPUCritical {
		out = append(out, Threshold{Resource: "CPU", Value: s.CPU, Level: models.AlertCritical})
	}
	if s.RAM > RAMWarning {
		out = append(out, Threshold{Resource: "RAM", Value: s.RAM, Level: models.AlertWarning})
	}
	if s.Disk > DiskCritical {
		out = append(out, Threshold{Resource: "Disk", Value: s.Disk, Level: models.AlertCritical})
	}
	return out
}
