// Package fake provides utilities for populating the fleet with random servers for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/models"
)

// Adder is the part of the fleet the generator needs.
type Adder interface {
	Add(form models.ServerForm) (models.Server, error)
}

// GenerateServers adds count randomized servers to the fleet and returns how many were added.
// It simulates various roles, racks, subnets, and a mostly-online status mix.
func GenerateServers(fleet Adder, count int, rng *rand.Rand) int {
	roles := []string{"Web", "Database", "Cache", "Mail", "Backup", "Proxy", "Build", "Queue", "Search", "Storage"}
	rowsHigh := []string{"A", "B", "C"}
	rowsLow := []string{"D", "E", "Z"}
	subnets := []string{"10.0", "10.10", "172.16", "192.168"}

	// Per-role counter keeps names unique
	seen := make(map[string]int)
	added := 0

	for i := 0; i < count; i++ {
		role := roles[rng.Intn(len(roles))]
		seen[role]++

		// Select rack, most servers sit in the first rows
		var row string
		if rng.Float32() < 0.8 {
			row = rowsHigh[rng.Intn(len(rowsHigh))]
		} else {
			row = rowsLow[rng.Intn(len(rowsLow))]
		}

		status := models.StatusUp
		if rng.Float32() < 0.15 {
			status = models.StatusDown
		}

		form := models.ServerForm{
			Name:     fmt.Sprintf("%s Server %02d", role, seen[role]),
			IP:       fmt.Sprintf("%s.%d.%d", subnets[rng.Intn(len(subnets))], rng.Intn(255), rng.Intn(253)+1),
			Location: fmt.Sprintf("Rack %s%d", row, rng.Intn(9)+1),
			Status:   status,
		}

		if _, err := fleet.Add(form); err != nil {
			log.Warn().Err(err).Str("name", form.Name).Msg("Failed to generate fake server")
			continue
		}
		added++
	}

	return added
}
