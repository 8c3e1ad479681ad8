package server

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/srvdash/internal/fleet"
	"github.com/woozymasta/srvdash/internal/models"
)

// HistoryReader serves the metric history of a server.
type HistoryReader interface {
	History(serverID string, limit int) ([]models.Snapshot, error)
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and push live updates to dashboard clients.
type Server struct {
	// fleet is the live server table every handler reads and mutates.
	fleet *fleet.Fleet

	// history provides the metric journal. It is nil when the journal is disabled.
	history HistoryReader

	// hub fans fleet changes and alerts out to websocket clients.
	hub *Hub

	// ctx outlives single requests; background restarts run under it
	// and stop when the workers are stopped.
	ctx    context.Context
	cancel context.CancelFunc

	// shutdown is a signal channel used to broadcast a stop signal to background routines.
	shutdown chan struct{}

	// limiter holds per-IP rate limiters of mutating routes.
	limiter *ipLimiter

	// authToken is the secret required by the API (Bearer) and the dashboard (Basic, user "admin").
	authToken string

	// wg waits for background routines before the server shuts down completely.
	wg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming request bodies.
	maxBody int64

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// Options configure a Server.
type Options struct {
	AuthToken      string
	MaxBodySize    int64
	TrustProxy     bool
	HardLimitCount int
	HardLimitWin   time.Duration
}

// event is one websocket message.
type event struct {
	Alert   *models.Alert   `json:"alert,omitempty"`
	Summary *models.Summary `json:"summary,omitempty"`
	Type    string          `json:"type"`
	Servers []models.Server `json:"servers,omitempty"`
}

// Websocket event types.
const (
	eventSnapshot = "snapshot"
	eventAlert    = "alert"
)
