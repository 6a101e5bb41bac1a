package enums

import "fmt"

// DiscrepancyReason classifies a settlement mismatch.
type DiscrepancyReason string

const (
	DiscrepancyReasonMissingInLedger DiscrepancyReason = "MISSING_IN_LEDGER"
	DiscrepancyReasonAmountMismatch  DiscrepancyReason = "AMOUNT_MISMATCH"
)

var validDiscrepancyReasons = []DiscrepancyReason{
	DiscrepancyReasonMissingInLedger,
	DiscrepancyReasonAmountMismatch,
}

// IsValid reports whether the value matches the canonical discrepancy reason enum.
func (r DiscrepancyReason) IsValid() bool {
	for _, candidate := range validDiscrepancyReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseDiscrepancyReason converts raw input into DiscrepancyReason.
func ParseDiscrepancyReason(value string) (DiscrepancyReason, error) {
	for _, candidate := range validDiscrepancyReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discrepancy reason %q", value)
}
