package alerts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/srvdash/internal/models"
)

type memorySink struct {
	saved   []models.Alert
	cleared int
	fail    bool
}

func (m *memorySink) InsertAlert(a models.Alert) (int64, error) {
	if m.fail {
		return 0, errors.New("disk full")
	}
	m.saved = append(m.saved, a)
	return int64(len(m.saved)) + 100, nil
}

func (m *memorySink) DeleteAlerts() error {
	m.cleared++
	m.saved = nil
	return nil
}

func TestFeedKeepsNewest(t *testing.T) {
	feed := New(3, nil)

	for i := 1; i <= 5; i++ {
		feed.Add(models.AlertInfo, "SRV-001", fmt.Sprintf("event %d", i))
	}

	recent := feed.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "event 5", recent[0].Message)
	assert.Equal(t, "event 3", recent[2].Message)
	assert.Equal(t, int64(5), recent[0].ID)

	assert.Len(t, feed.Recent(2), 2)
	assert.Len(t, feed.Recent(10), 3)
}

func TestFeedPersistsAndNotifies(t *testing.T) {
	sink := &memorySink{}
	feed := New(DefaultLimit, sink)

	var seen []models.Alert
	feed.OnAlert(func(a models.Alert) { seen = append(seen, a) })

	a := feed.Add(models.AlertCritical, "SRV-002", "CPU critical")

	assert.Equal(t, int64(101), a.ID, "ID comes from the sink")
	assert.Len(t, sink.saved, 1)
	require.Len(t, seen, 1)
	assert.Equal(t, models.AlertCritical, seen[0].Level)
}

func TestFeedSurvivesSinkFailure(t *testing.T) {
	feed := New(DefaultLimit, &memorySink{fail: true})

	a := feed.Add(models.AlertWarning, "", "RAM high")

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, 1, feed.Len())
}

func TestFeedClear(t *testing.T) {
	sink := &memorySink{}
	feed := New(DefaultLimit, sink)
	feed.Add(models.AlertInfo, "", "one")
	feed.Add(models.AlertInfo, "", "two")

	feed.Clear()

	recent := feed.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, "All alerts cleared", recent[0].Message)
	assert.Equal(t, 1, sink.cleared)
}

func TestFeedRestore(t *testing.T) {
	feed := New(2, nil)
	feed.Restore([]models.Alert{
		{ID: 7, Message: "old"},
		{ID: 8, Message: "older than new"},
		{ID: 9, Message: "newest"},
	})

	recent := feed.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "newest", recent[0].Message)

	a := feed.Add(models.AlertInfo, "", "fresh")
	assert.Equal(t, int64(10), a.ID)
}
