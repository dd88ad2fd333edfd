package domain

import (
	"errors"
	"strings"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

var ErrInvalidRiskLevel = errors.New("invalid risk level")

// ParseRiskLevel accepts any casing of Low, Medium or High.
func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	default:
		return "", ErrInvalidRiskLevel
	}
}

type SecurityReport struct {
	RiskLevel          RiskLevel `json:"riskLevel"`
	Summary            string    `json:"summary"`
	EncryptionAnalysis string    `json:"encryptionAnalysis"`
}
