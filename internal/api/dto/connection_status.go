package dto

import (
	"vpnrotator/internal/domain"
	"vpnrotator/internal/rotation"
)

const SimulationNote = "Simulation only: connecting does not change the operating system's network settings."

// ConnectionStatus is the snapshot as served over HTTP and websocket.
type ConnectionStatus struct {
	rotation.Snapshot
	Countdown string `json:"countdown"`
	Tunnel    string `json:"tunnel,omitempty"`
	Note      string `json:"note"`
}

func NewConnectionStatus(s rotation.Snapshot) ConnectionStatus {
	status := ConnectionStatus{
		Snapshot:  s,
		Countdown: rotation.FormatCountdown(s.Timer),
		Note:      SimulationNote,
	}
	if s.Proxy != nil && s.Connection == domain.Connected {
		status.Tunnel = "Tunneling via " + s.Proxy.Location()
	}
	return status
}
