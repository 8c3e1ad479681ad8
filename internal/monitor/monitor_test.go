package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/srvdash/internal/fleet"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/sheet"
)

type stubFleet struct {
	persistErr error
	result     fleet.TickResult
	ticks      int
	persists   int
	mu         sync.Mutex
}

func (s *stubFleet) Tick(time.Time) fleet.TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	return s.result
}

func (s *stubFleet) Persist(bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persists++
	return s.persistErr
}

func (s *stubFleet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

type stubJournal struct {
	err      error
	batches  [][]models.Snapshot
	prunedAt []time.Time
}

func (j *stubJournal) InsertSnapshots(batch []models.Snapshot) error {
	if j.err != nil {
		return j.err
	}
	j.batches = append(j.batches, batch)
	return nil
}

func (j *stubJournal) Prune(before time.Time) (int64, error) {
	j.prunedAt = append(j.prunedAt, before)
	return 0, nil
}

func TestStep(t *testing.T) {
	t.Run("unchanged pass writes nothing", func(t *testing.T) {
		f := &stubFleet{}
		j := &stubJournal{}

		require.NoError(t, New(f, j, Options{}).Step())

		assert.Equal(t, 1, f.ticks)
		assert.Zero(t, f.persists)
		assert.Empty(t, j.batches)
	})

	t.Run("changed pass saves and journals", func(t *testing.T) {
		f := &stubFleet{result: fleet.TickResult{
			Changed:   true,
			Snapshots: []models.Snapshot{{ServerID: "SRV-001"}, {ServerID: "SRV-002"}},
		}}
		j := &stubJournal{}

		require.NoError(t, New(f, j, Options{}).Step())

		assert.Equal(t, 1, f.persists)
		require.Len(t, j.batches, 1)
		assert.Len(t, j.batches[0], 2)
	})

	t.Run("locked store is not a failure", func(t *testing.T) {
		f := &stubFleet{
			result:     fleet.TickResult{Changed: true},
			persistErr: sheet.ErrLocked,
		}
		assert.NoError(t, New(f, nil, Options{}).Step())
	})

	t.Run("journal failure is reported", func(t *testing.T) {
		f := &stubFleet{result: fleet.TickResult{Changed: true}}
		j := &stubJournal{err: errors.New("disk I/O error")}

		assert.ErrorContains(t, New(f, j, Options{}).Step(), "journal: disk I/O error")
	})

	t.Run("prunes at most hourly", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		j := &stubJournal{}
		m := New(&stubFleet{}, j, Options{
			Retention: 24 * time.Hour,
			Now:       func() time.Time { return now },
		})

		require.NoError(t, m.Step())
		now = now.Add(10 * time.Minute)
		require.NoError(t, m.Step())
		now = now.Add(time.Hour)
		require.NoError(t, m.Step())

		require.Len(t, j.prunedAt, 2)
		assert.True(t, j.prunedAt[0].Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	f := &stubFleet{}
	m := New(f, nil, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return f.count() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
