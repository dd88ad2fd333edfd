package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"vpnrotator/internal/api/dto"
)

func (a *api) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewConnectionStatus(a.ctrl.Snapshot()))
}

func (a *api) connect(w http.ResponseWriter, r *http.Request) {
	a.runCommand(w, r, "connect", a.ctrl.Connect)
}

func (a *api) disconnect(w http.ResponseWriter, r *http.Request) {
	a.runCommand(w, r, "disconnect", a.ctrl.Disconnect)
}

func (a *api) rotateNow(w http.ResponseWriter, r *http.Request) {
	a.runCommand(w, r, "rotate", a.ctrl.RotateNow)
}

func (a *api) toggleAutoRotate(w http.ResponseWriter, r *http.Request) {
	a.runCommand(w, r, "auto_rotate", a.ctrl.ToggleAutoRotate)
}

func (a *api) selectProxy(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, "Missing proxy id", http.StatusBadRequest)
		return
	}

	a.runCommand(w, r, "select", func(ctx context.Context) error {
		return a.ctrl.SelectProxy(ctx, id)
	})
}

// runCommand dispatches a control action and replies with the resulting state.
// Actions that do not apply in the current state still succeed.
func (a *api) runCommand(w http.ResponseWriter, r *http.Request, name string, command func(context.Context) error) {
	if err := command(r.Context()); err != nil {
		log.Warn("control command failed", "command", name, "error", err)
		writeControllerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewConnectionStatus(a.ctrl.Snapshot()))
}
