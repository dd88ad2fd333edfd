package dto

import (
	"time"

	"vpnrotator/internal/domain"
)

type RotationHistoryEntry struct {
	RequestID   string    `json:"request_id"`
	Reason      string    `json:"reason"`
	FromProxyID string    `json:"from_proxy_id,omitempty"`
	ProxyID     string    `json:"proxy_id"`
	Address     string    `json:"address"`
	Protocol    string    `json:"protocol"`
	Location    string    `json:"location"`
	RotatedAt   time.Time `json:"rotated_at"`
}

func NewRotationHistory(records []domain.RotationRecord) []RotationHistoryEntry {
	entries := make([]RotationHistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, RotationHistoryEntry{
			RequestID:   r.RequestID,
			Reason:      r.Reason,
			FromProxyID: r.FromProxyID,
			ProxyID:     r.ProxyID,
			Address:     r.Address,
			Protocol:    r.Protocol,
			Location:    r.City + ", " + r.Country,
			RotatedAt:   r.CreatedAt,
		})
	}
	return entries
}
