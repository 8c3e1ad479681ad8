package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.1.1.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "10.1.1.1", GetRealIP(r, false))
	assert.Equal(t, "203.0.113.7", GetRealIP(r, true))

	r.Header.Set("CF-Connecting-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", GetRealIP(r, true))

	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", GetRealIP(r, false))
}

func TestIPLimiter(t *testing.T) {
	l := newIPLimiter(1, time.Hour)

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "buckets are per client")

	l.gc(time.Hour)
	assert.Len(t, l.clients, 2)

	l.clients["a"].lastSeen = time.Now().Add(-2 * time.Hour)
	l.gc(time.Hour)
	assert.Len(t, l.clients, 1)
	assert.True(t, l.allow("a"), "a dropped client starts with a full bucket")
}

func TestTokenEqual(t *testing.T) {
	assert.True(t, tokenEqual("x", "x"))
	assert.False(t, tokenEqual("x", "y"))
	assert.False(t, tokenEqual("", ""), "an empty token never matches")
}
