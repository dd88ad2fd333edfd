package server

import (
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"vpnrotator/internal/api/dto"
)

const maxHistoryLimit = 500

func (a *api) listHistory(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, "rotation history is disabled", http.StatusNotFound)
		return
	}

	limit := a.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := a.history(r.Context(), limit)
	if err != nil {
		log.Error("Failed to load rotation history", "error", err)
		writeError(w, "Failed to load rotation history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"rotations": dto.NewRotationHistory(records)})
}

func (a *api) listInstances(w http.ResponseWriter, r *http.Request) {
	if a.instances == nil {
		writeError(w, "instance registry requires redis", http.StatusNotFound)
		return
	}

	instances, err := a.instances(r.Context())
	if err != nil {
		log.Error("Failed to list instances", "error", err)
		writeError(w, "Failed to list instances", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"instances": instances})
}
