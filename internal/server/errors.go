package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srvdash/internal/fleet"
	"github.com/woozymasta/srvdash/internal/sheet"
)

var (
	errBadBody         = errors.New("invalid request body")
	errJournalDisabled = errors.New("history journal is disabled")
)

// errStatus maps domain errors to HTTP status codes.
var errStatus = map[error]int{
	fleet.ErrNotFound:          http.StatusNotFound,
	fleet.ErrDuplicateID:       http.StatusConflict,
	fleet.ErrValidation:        http.StatusBadRequest,
	fleet.ErrNoChanges:         http.StatusUnprocessableEntity,
	fleet.ErrRestartInProgress: http.StatusConflict,
	sheet.ErrLocked:            http.StatusLocked,
	errBadBody:                 http.StatusBadRequest,
	errJournalDisabled:         http.StatusServiceUnavailable,
}

func statusOf(err error) int {
	for target, code := range errStatus {
		if errors.Is(err, target) {
			return code
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondErr writes err with the status of its domain error. Unknown errors are logged and hidden.
func respondErr(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}
