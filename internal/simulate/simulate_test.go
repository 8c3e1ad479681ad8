package simulate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/woozymasta/srvdash/internal/models"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name           string
		cpu, ram, disk float64
		expected       float64
	}{
		{"Idle", 0, 0, 0, 100},
		{"Half", 50, 50, 50, 75},
		{"Saturated", 100, 100, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Score(tt.cpu, tt.ram, tt.disk), 1e-9)
		})
	}
}

func TestDriftStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := &models.Server{Status: models.StatusUp, CPU: 97, RAM: 11, Disk: 98.5}

	for i := 0; i < 1000; i++ {
		Drift(rng, s)

		assert.GreaterOrEqual(t, s.CPU, 5.0)
		assert.LessOrEqual(t, s.CPU, 98.0)
		assert.GreaterOrEqual(t, s.RAM, 10.0)
		assert.LessOrEqual(t, s.RAM, 95.0)
		assert.GreaterOrEqual(t, s.Disk, 20.0)
		assert.LessOrEqual(t, s.Disk, 99.0)
		assert.GreaterOrEqual(t, s.NetIn, int64(100))
		assert.LessOrEqual(t, s.NetIn, int64(3000))
		assert.LessOrEqual(t, s.NetOut, int64(2500))
		assert.InDelta(t, Score(s.CPU, s.RAM, s.Disk), s.Score, 1e-9)
	}
}

func TestCrashKeepsDisk(t *testing.T) {
	s := &models.Server{Status: models.StatusUp, CPU: 50, RAM: 50, Disk: 70, NetIn: 10, NetOut: 10, Score: 80}

	Crash(s)

	assert.Equal(t, models.StatusDown, s.Status)
	assert.Zero(t, s.CPU)
	assert.Zero(t, s.RAM)
	assert.Zero(t, s.Score)
	assert.Zero(t, s.NetIn)
	assert.Equal(t, 70.0, s.Disk)
}

func TestBootScoreFloor(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		s := &models.Server{Status: models.StatusDown, Disk: 99, UptimeHours: 42}
		Boot(rng, s)

		assert.Equal(t, models.StatusUp, s.Status)
		assert.GreaterOrEqual(t, s.Score, 70.0)
		assert.Zero(t, s.UptimeHours)
		assert.GreaterOrEqual(t, s.CPU, 5.0)
		assert.LessOrEqual(t, s.CPU, 30.0)
	}
}

func TestBootFillsMissingDisk(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	s := &models.Server{Status: models.StatusDown}

	Boot(rng, s)

	assert.GreaterOrEqual(t, s.Disk, 30.0)
	assert.LessOrEqual(t, s.Disk, 70.0)
}

func TestProbe(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var up, down int

	for i := 0; i < 2000; i++ {
		s := &models.Server{Status: models.StatusUp}
		if Probe(rng, s) == models.StatusUp {
			up++
			assert.Greater(t, s.CPU, 0.0)
		} else {
			down++
			assert.Zero(t, s.CPU)
			assert.Zero(t, s.Disk)
		}
	}

	// p(stay up) = 0.9
	assert.InDelta(t, 0.9, float64(up)/2000, 0.05)
	assert.Equal(t, 2000, up+down)
}

func TestZero(t *testing.T) {
	s := &models.Server{CPU: 1, RAM: 2, Disk: 3, NetIn: 4, NetOut: 5, Score: 6, UptimeHours: 7}
	Zero(s)
	assert.Equal(t, models.Server{}, *s)
}

func TestBreaches(t *testing.T) {
	s := &models.Server{CPU: 91, RAM: 86, Disk: 89}

	b := Breaches(s)

	if assert.Len(t, b, 2) {
		assert.Equal(t, "CPU", b[0].Resource)
		assert.Equal(t, models.AlertCritical, b[0].Level)
		assert.Equal(t, "RAM", b[1].Resource)
		assert.Equal(t, models.AlertWarning, b[1].Level)
	}

	assert.Empty(t, Breaches(&models.Server{CPU: 90, RAM: 85, Disk: 90}), "limits are exclusive")
}

func TestBackfill(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	assert.Zero(t, Backfill(rng, "CPU_Usage", models.StatusDown))

	v := Backfill(rng, "Uptime_Hours", models.StatusUp)
	assert.GreaterOrEqual(t, v, 1.0)
	assert.LessOrEqual(t, v, 2000.0)

	assert.Zero(t, Backfill(rng, "Unknown", models.StatusUp))
}
