package maintenance

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/srvdash/internal/config"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/sheet"
)

type fakeSheet struct {
	servers []models.Server
	resets  int
}

func (f *fakeSheet) Load() ([]models.Server, error) { return f.servers, nil }
func (f *fakeSheet) Reset() error                   { f.resets++; return nil }
func (f *fakeSheet) Path() string                   { return "servers.xlsx" }

type fakePruner struct{ before time.Time }

func (f *fakePruner) Prune(before time.Time) (int64, error) {
	f.before = before
	return 3, nil
}

func TestRunNothing(t *testing.T) {
	ran, err := Run(&config.Config{}, Deps{Sheet: &fakeSheet{}})
	assert.False(t, ran)
	assert.NoError(t, err)
}

func TestRunSheetCheck(t *testing.T) {
	var out bytes.Buffer
	cfg := &config.Config{}
	cfg.Sheet.Check = true

	ran, err := Run(cfg, Deps{Sheet: &fakeSheet{servers: sheet.Defaults(time.Now())}, Out: &out})
	assert.True(t, ran)
	assert.NoError(t, err)
	assert.Empty(t, out.String())

	broken := &fakeSheet{servers: []models.Server{{ID: "SRV-001", IP: "nope", Status: models.StatusUp}}}
	ran, err = Run(cfg, Deps{Sheet: broken, Out: &out})
	assert.True(t, ran)
	assert.ErrorIs(t, err, ErrIssuesFound)
	assert.Contains(t, out.String(), `row 2 (SRV-001): invalid IPv4 address "nope"`)
}

func TestRunReset(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sheet.Reset = true
	store := &fakeSheet{}

	ran, err := Run(cfg, Deps{Sheet: store})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, store.resets)
}

func TestRunPrune(t *testing.T) {
	now := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	cfg := &config.Config{}
	cfg.Journal.Prune = 48 * time.Hour

	ran, err := Run(cfg, Deps{Sheet: &fakeSheet{}, Now: func() time.Time { return now }})
	assert.True(t, ran)
	assert.Error(t, err, "pruning without a journal fails")

	pruner := &fakePruner{}
	ran, err = Run(cfg, Deps{Sheet: &fakeSheet{}, Journal: pruner, Now: func() time.Time { return now }})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, pruner.before.Equal(time.Date(2025, 2, 8, 0, 0, 0, 0, time.UTC)))
}
