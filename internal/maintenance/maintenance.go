// Package maintenance provides one-shot tools to check and reset the record store and to clean the journal.
package maintenance

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/config"
	"github.com/woozymasta/srvdash/internal/fake"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/sheet"
)

// ErrIssuesFound is returned by the sheet check when the record store has problems.
var ErrIssuesFound = errors.New("record store has data problems")

// RecordStore is the sheet side of maintenance.
type RecordStore interface {
	Load() ([]models.Server, error)
	Reset() error
	Path() string
}

// Pruner drops old journal rows.
type Pruner interface {
	Prune(before time.Time) (int64, error)
}

// Deps are the components maintenance tasks may touch. Journal and Fleet may be nil.
type Deps struct {
	Sheet   RecordStore
	Journal Pruner
	Fleet   fake.Adder
	Out     io.Writer
	Now     func() time.Time
}

// Run checks if any maintenance flags are set and executes the corresponding task.
// It returns true if a task was executed, indicating the program should exit.
func Run(cfg *config.Config, deps Deps) (bool, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	switch {
	case cfg.Sheet.Check:
		return true, checkSheet(deps)

	case cfg.Sheet.Reset:
		log.Info().Str("path", deps.Sheet.Path()).Msg("Resetting record store to the default fleet...")
		if err := deps.Sheet.Reset(); err != nil {
			return true, fmt.Errorf("reset record store: %w", err)
		}
		log.Info().Str("backup", deps.Sheet.Path()+".backup").Msg("Record store reset")
		return true, nil

	case cfg.Journal.Prune > 0:
		if deps.Journal == nil {
			return true, errors.New("journal is disabled, nothing to prune")
		}
		before := deps.Now().Add(-cfg.Journal.Prune)
		log.Info().Time("before", before).Msg("Pruning journal...")
		count, err := deps.Journal.Prune(before)
		if err != nil {
			return true, fmt.Errorf("prune journal: %w", err)
		}
		log.Info().Int64("deleted", count).Msg("Prune finished")
		return true, nil

	case cfg.Server.GenerateCount > 0:
		if deps.Fleet == nil {
			return true, errors.New("fleet is not available")
		}
		rng := rand.New(rand.NewSource(deps.Now().UnixNano()))
		added := fake.GenerateServers(deps.Fleet, cfg.Server.GenerateCount, rng)
		log.Info().Int("added", added).Msg("Fake servers generated")
		return true, nil
	}

	return false, nil
}

func checkSheet(deps Deps) error {
	servers, err := deps.Sheet.Load()
	if err != nil {
		return fmt.Errorf("load record store: %w", err)
	}

	issues := sheet.Check(servers)
	for _, issue := range issues {
		if deps.Out != nil {
			_, _ = fmt.Fprintln(deps.Out, issue.String())
		}
		log.Warn().Int("row", issue.Row).Str("server_id", issue.ServerID).Msg(issue.Problem)
	}

	log.Info().
		Str("path", deps.Sheet.Path()).
		Int("servers", len(servers)).
		Int("issues", len(issues)).
		Msg("Record store check completed")

	if len(issues) > 0 {
		return fmt.Errorf("%w: %d found", ErrIssuesFound, len(issues))
	}

	return nil
}
