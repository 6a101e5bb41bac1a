package enums

import "fmt"

// EntryType maps to the ledger_entry_type enum in Postgres.
type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

var validEntryTypes = []EntryType{
	EntryTypeDebit,
	EntryTypeCredit,
}

// IsValid reports whether the value matches the canonical entry type enum.
func (t EntryType) IsValid() bool {
	for _, candidate := range validEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseEntryType converts raw input into EntryType.
func ParseEntryType(value string) (EntryType, error) {
	for _, candidate := range validEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entry type %q", value)
}
