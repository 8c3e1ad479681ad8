// Package server implements the HTTP API, the dashboard page and the live websocket feed.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/woozymasta/srvdash/internal/fleet"
	"github.com/woozymasta/srvdash/internal/models"
)

// New creates a Server over the fleet. history may be nil.
func New(f *fleet.Fleet, history HistoryReader, opts Options) *Server {
	if opts.HardLimitCount <= 0 {
		opts.HardLimitCount = 30
	}
	if opts.HardLimitWin <= 0 {
		opts.HardLimitWin = time.Minute
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = 64 << 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		fleet:      f,
		history:    history,
		hub:        NewHub(),
		ctx:        ctx,
		cancel:     cancel,
		shutdown:   make(chan struct{}),
		limiter:    newIPLimiter(opts.HardLimitCount, opts.HardLimitWin),
		authToken:  opts.AuthToken,
		maxBody:    opts.MaxBodySize,
		trustProxy: opts.TrustProxy,
	}

	f.OnChange(func() { s.hub.Publish(s.snapshot()) })
	f.Alerts().OnAlert(func(a models.Alert) {
		s.hub.Publish(event{Type: eventAlert, Alert: &a})
	})

	return s
}

// StartWorkers starts the websocket hub and the rate limiter cleanup routine.
func (s *Server) StartWorkers() {
	s.wg.Add(2)

	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()

	go func() {
		defer s.wg.Done()
		s.gcLimiter()
	}()
}

// StopWorkers cancels pending background work, disconnects websocket clients and waits for the routines.
func (s *Server) StopWorkers() {
	s.cancel()
	close(s.shutdown)
	s.hub.Close()
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	read := func(h http.HandlerFunc) http.Handler {
		return AdminAuthMiddleware(s.authToken, false, h)
	}
	write := func(h http.HandlerFunc) http.Handler {
		return AdminAuthMiddleware(s.authToken, false, s.RateLimitMiddleware(h))
	}

	mux.Handle("GET /api/version", read(s.handleVersion))
	mux.Handle("GET /api/summary", read(s.handleSummary))

	mux.Handle("GET /api/servers", read(s.handleListServers))
	mux.Handle("POST /api/servers", write(s.handleAddServer))
	mux.Handle("GET /api/servers/{id}", read(s.handleGetServer))
	mux.Handle("PUT /api/servers/{id}", write(s.handleEditServer))
	mux.Handle("DELETE /api/servers/{id}", write(s.handleDeleteServer))
	mux.Handle("POST /api/servers/{id}/refresh", write(s.handleRefreshServer))
	mux.Handle("POST /api/servers/{id}/restart", write(s.handleRestartServer))
	mux.Handle("GET /api/servers/{id}/history", read(s.handleHistory))

	mux.Handle("GET /api/servers/{id}/logs", read(s.handleGetLogs))
	mux.Handle("PUT /api/servers/{id}/logs", write(s.handleSetLogs))
	mux.Handle("POST /api/servers/{id}/logs/refresh", write(s.handleAppendLog))
	mux.Handle("DELETE /api/servers/{id}/logs", write(s.handleClearLogs))

	mux.Handle("GET /api/alerts", read(s.handleAlerts))
	mux.Handle("DELETE /api/alerts", write(s.handleClearAlerts))
	mux.Handle("POST /api/reload", write(s.handleReload))

	mux.Handle("GET /api/ws", AdminAuthMiddleware(s.authToken, true, http.HandlerFunc(s.handleWebsocket)))

	mux.Handle("GET /{$}", BasicAuthMiddleware(s.authToken, http.HandlerFunc(s.handleDashboard)))

	return s.LoggingMiddleware(mux)
}

// snapshot captures the whole table for websocket clients.
func (s *Server) snapshot() event {
	summary := s.fleet.Summary()
	return event{
		Type:    eventSnapshot,
		Servers: s.fleet.List(),
		Summary: &summary,
	}
}

// gcLimiter periodically drops rate limiters of idle clients.
func (s *Server) gcLimiter() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.limiter.gc(10 * time.Minute)
		}
	}
}
