package accounts

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardrail/backend/pkg/enums"
)

// Platform account codes seeded by migration.
const (
	CodeOperating  = "1000-ASSET-OP"
	CodeSettlement = "1100-ASSET-SETTLE"
	CodeFeeRevenue = "4000-REV-FEES"

	walletCodePrefix = "2000-WALLET-"
)

// SignedDelta converts one entry into the balance movement it causes. Credit
// entries grow credit-normal accounts and shrink the rest; debit entries do
// the opposite. Every balance mutation in the system flows through this
// function so the sign convention lives in exactly one place.
func SignedDelta(accountType enums.AccountType, entryType enums.EntryType, amount decimal.Decimal) decimal.Decimal {
	isCredit := entryType == enums.EntryTypeCredit
	if accountType.IsCreditNormal() == isCredit {
		return amount
	}
	return amount.Neg()
}

// WalletCode derives the deterministic chart-of-accounts code for an owner's
// wallet from the first UUID segment.
func WalletCode(ownerID uuid.UUID) string {
	return walletCodePrefix + strings.ToUpper(ownerID.String()[:8])
}

// WalletName builds the display name paired with a wallet code.
func WalletName(ownerID uuid.UUID) string {
	return fmt.Sprintf("Wallet %s", strings.ToUpper(ownerID.String()[:8]))
}
