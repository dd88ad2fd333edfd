package server

import (
	"errors"
	"net/http"
	"strings"

	"vpnrotator/internal/api/dto"
	"vpnrotator/internal/catalog"
	"vpnrotator/internal/rotation"
)

func (a *api) listProxies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"proxies": dto.NewProxyInfoList(a.ctrl.Catalog().All())})
}

func (a *api) getProxy(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	proxy, err := a.ctrl.Catalog().Get(id)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewProxyInfo(proxy))
}

func writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrProxyNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, rotation.ErrStopped):
		writeError(w, "controller stopped", http.StatusServiceUnavailable)
	default:
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}
