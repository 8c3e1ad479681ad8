package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/assets"
	"github.com/woozymasta/srvdash/internal/models"
	"github.com/woozymasta/srvdash/internal/vars"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// handleDashboard serves the dashboard page, injecting the API token for its scripts.
func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	content, err := assets.ReadFile("dashboard.html")
	if err != nil {
		respondErr(w, err)
		return
	}

	tmpl, err := template.New("dashboard").Parse(string(content))
	if err != nil {
		respondErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = tmpl.Execute(w, map[string]string{
		"AuthToken": s.authToken,
		"Version":   vars.Version,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.fleet.Summary())
}

// handleListServers returns every server, or one dashboard page with ?page=n.
func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		writeJSON(w, http.StatusOK, s.fleet.Page(n))
		return
	}

	writeJSON(w, http.StatusOK, s.fleet.List())
}

func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var form models.ServerForm
	if err := s.decode(w, r, &form); err != nil {
		respondErr(w, err)
		return
	}

	srv, err := s.fleet.Add(form)
	if err != nil {
		respondErr(w, err)
		return
	}

	log.Info().Str("server_id", srv.ID).Str("ip", GetRealIP(r, s.trustProxy)).Msg("Server added")
	writeJSON(w, http.StatusCreated, srv)
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	srv, err := s.fleet.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleEditServer(w http.ResponseWriter, r *http.Request) {
	var form models.ServerForm
	if err := s.decode(w, r, &form); err != nil {
		respondErr(w, err)
		return
	}

	srv, err := s.fleet.Edit(r.PathValue("id"), form)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.fleet.Delete(id); err != nil {
		respondErr(w, err)
		return
	}

	log.Info().Str("server_id", id).Str("ip", GetRealIP(r, s.trustProxy)).Msg("Server deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshServer(w http.ResponseWriter, r *http.Request) {
	srv, err := s.fleet.Refresh(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

// handleRestartServer starts a background restart and answers 202 right away.
func (s *Server) handleRestartServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.fleet.Restart(s.ctx, id); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarting", "id": id})
}

// handleHistory returns journal snapshots of one server. Query params: ?limit=100
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondErr(w, errJournalDisabled)
		return
	}

	id := r.PathValue("id")
	if _, err := s.fleet.Get(id); err != nil {
		respondErr(w, err)
		return
	}

	limit := defaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	points, err := s.history.History(id, limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	if points == nil {
		points = []models.Snapshot{}
	}
	writeJSON(w, http.StatusOK, points)
}

type logsBody struct {
	ID   string `json:"id,omitempty"`
	Logs string `json:"logs"`
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	srv, err := s.fleet.Get(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logsBody{ID: srv.ID, Logs: srv.Logs})
}

func (s *Server) handleSetLogs(w http.ResponseWriter, r *http.Request) {
	var body logsBody
	if err := s.decode(w, r, &body); err != nil {
		respondErr(w, err)
		return
	}

	srv, err := s.fleet.SetLogs(r.PathValue("id"), body.Logs)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logsBody{ID: srv.ID, Logs: srv.Logs})
}

func (s *Server) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	srv, err := s.fleet.AppendLog(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logsBody{ID: srv.ID, Logs: srv.Logs})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	srv, err := s.fleet.ClearLogs(r.PathValue("id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logsBody{ID: srv.ID, Logs: srv.Logs})
}

// handleAlerts returns the newest alerts first. Query params: ?limit=20
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, s.fleet.Alerts().Recent(limit))
}

func (s *Server) handleClearAlerts(w http.ResponseWriter, _ *http.Request) {
	s.fleet.Alerts().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	if err := s.fleet.Reload(); err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.fleet.Summary())
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, s.snapshot())
}

// decode reads a size-limited JSON body into v.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		log.Debug().Err(err).Str("ip", GetRealIP(r, s.trustProxy)).Msg("Invalid JSON")
		return fmt.Errorf("%w: %v", errBadBody, err)
	}

	return nil
}
