package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, Summary{}, Summarize(nil))
	})

	t.Run("OnlineAveragesOnly", func(t *testing.T) {
		servers := []Server{
			{ID: "SRV-001", Status: StatusUp, CPU: 40, RAM: 60, Disk: 50, Score: 80, UptimeHours: 10},
			{ID: "SRV-002", Status: StatusUp, CPU: 95, RAM: 20, Disk: 30, Score: 60, UptimeHours: 5},
			{ID: "SRV-003", Status: StatusDown, Disk: 96},
		}

		sum := Summarize(servers)

		assert.Equal(t, 3, sum.Total)
		assert.Equal(t, 2, sum.Online)
		assert.Equal(t, 1, sum.Offline)
		assert.Equal(t, 2, sum.Critical, "CPU 95 and disk 96 are both critical")
		assert.InDelta(t, 67.5, sum.AvgCPU, 1e-9)
		assert.InDelta(t, 40.0, sum.AvgRAM, 1e-9)
		assert.InDelta(t, 70.0, sum.AvgScore, 1e-9)
		assert.InDelta(t, 15.0, sum.TotalUptime, 1e-9)
	})

	t.Run("AllOffline", func(t *testing.T) {
		sum := Summarize([]Server{{Status: StatusDown}, {Status: StatusDown}})
		assert.Equal(t, 2, sum.Offline)
		assert.Zero(t, sum.AvgCPU)
		assert.Zero(t, sum.AvgScore)
	})
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusUp.Valid())
	assert.True(t, StatusDown.Valid())
	assert.False(t, Status("maybe").Valid())
	assert.False(t, Status("").Valid())
}
