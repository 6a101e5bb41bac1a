package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cardrail/backend/pkg/enums"
)

// EventBalanceChanged tags messages emitted after a posted transaction moves
// an account balance.
const EventBalanceChanged = "balance.changed"

// BalanceEvent describes one account whose balance moved.
type BalanceEvent struct {
	AccountID     uuid.UUID           `json:"account_id"`
	AccountCode   string              `json:"account_code"`
	OwnerID       *uuid.UUID          `json:"owner_id,omitempty"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	ReferenceType enums.ReferenceType `json:"reference_type"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// Notifier delivers balance events after a ledger commit. Delivery is best
// effort; a failed notification never unwinds the transaction that caused it.
type Notifier interface {
	BalanceChanged(ctx context.Context, event BalanceEvent)
}

// NoopNotifier drops every event. Used when no message broker is configured.
type NoopNotifier struct{}

func (NoopNotifier) BalanceChanged(context.Context, BalanceEvent) {}
