package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutable(t *testing.T) {
	for _, ip := range []string{"192.168.1.10", "10.0.0.1", "172.16.5.5", "127.0.0.1", "0.0.0.0", "169.254.1.1", "garbage", ""} {
		assert.Nil(t, Routable(ip), ip)
	}
	assert.NotNil(t, Routable("8.8.8.8"))
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.Empty(t, p.Country("8.8.8.8"))
	assert.NoError(t, p.Close())
}

func TestEnsureDB(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Contains(t, r.Header.Get("User-Agent"), "srvdash/")
		_, _ = w.Write([]byte("mmdb"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "country.mmdb")

	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mmdb", string(data))

	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))
	assert.Equal(t, int32(1), hits.Load(), "fresh database is not downloaded again")

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))
	assert.Equal(t, int32(2), hits.Load())
}

func TestEnsureDBFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "country.mmdb")

	assert.ErrorContains(t, EnsureDB(context.Background(), path, srv.URL, time.Hour), "unexpected status 404")
	assert.NoFileExists(t, path)

	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	assert.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour), "stale database is kept")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}
