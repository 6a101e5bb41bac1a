package enums

import "fmt"

// SettlementStatus is the terminal state of one reconciliation run.
type SettlementStatus string

const (
	SettlementStatusProcessing  SettlementStatus = "PROCESSING"
	SettlementStatusMatched     SettlementStatus = "MATCHED"
	SettlementStatusDiscrepancy SettlementStatus = "DISCREPANCY"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementStatusProcessing,
	SettlementStatusMatched,
	SettlementStatusDiscrepancy,
}

// IsValid reports whether the value matches the canonical settlement status enum.
func (s SettlementStatus) IsValid() bool {
	for _, candidate := range validSettlementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSettlementStatus converts raw input into SettlementStatus.
func ParseSettlementStatus(value string) (SettlementStatus, error) {
	for _, candidate := range validSettlementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement status %q", value)
}
