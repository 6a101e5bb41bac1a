package enums

import "fmt"

// ReferenceType tags a ledger transaction with the economic event it records.
type ReferenceType string

const (
	ReferenceTypeWalletLoad ReferenceType = "wallet_load"
	ReferenceTypeCardSpend  ReferenceType = "card_spend"
	ReferenceTypeCommission ReferenceType = "commission"
	ReferenceTypeReversal   ReferenceType = "reversal"
	ReferenceTypeSettlement ReferenceType = "settlement"
	ReferenceTypeAdjustment ReferenceType = "adjustment"
)

var validReferenceTypes = []ReferenceType{
	ReferenceTypeWalletLoad,
	ReferenceTypeCardSpend,
	ReferenceTypeCommission,
	ReferenceTypeReversal,
	ReferenceTypeSettlement,
	ReferenceTypeAdjustment,
}

// IsValid reports whether the value matches the canonical reference type enum.
func (t ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseReferenceType converts raw input into ReferenceType.
func ParseReferenceType(value string) (ReferenceType, error) {
	for _, candidate := range validReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference type %q", value)
}
