package server

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"

	"vpnrotator/internal/catalog"
	"vpnrotator/internal/config"
)

func (a *api) getSettings(w http.ResponseWriter, _ *http.Request) {
	if a.settings == nil {
		writeError(w, "Settings are not available", http.StatusNotFound)
		return
	}

	cfg := a.settings()
	cfg.Report.APIKey = ""
	writeJSON(w, http.StatusOK, cfg)
}

// saveSettings replaces the settings. An empty report.api_key keeps the stored
// key, since getSettings never returns it.
func (a *api) saveSettings(w http.ResponseWriter, r *http.Request) {
	if a.settings == nil || a.saveSettingsFn == nil {
		writeError(w, "Settings are not available", http.StatusNotFound)
		return
	}

	var newConfig config.Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if newConfig.Rotation.Timer.IsZero() {
		writeError(w, "rotation.timer must be at least one second", http.StatusBadRequest)
		return
	}
	if newConfig.Catalog.Size < catalog.MinSize {
		writeError(w, "catalog.size is below the minimum", http.StatusBadRequest)
		return
	}

	if newConfig.Report.APIKey == "" {
		newConfig.Report.APIKey = a.settings().Report.APIKey
	}

	if err := a.saveSettingsFn(newConfig); err != nil {
		// The settings are already active; only persisting or broadcasting failed.
		log.Error("Failed to persist settings", "error", err)
		writeError(w, "Configuration applied but could not be saved", http.StatusInternalServerError)
		return
	}

	log.Info("Configuration updated", "rotation_interval", config.CalculateBetweenTime(newConfig.Rotation.Timer))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Configuration updated successfully"})
}
