package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cardrail/backend/pkg/config"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
	"github.com/cardrail/backend/pkg/redis"
)

// State tracks where a keyed request sits in its lifecycle.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
)

// Record is the value stored per idempotency key.
type Record struct {
	State       State             `json:"state"`
	RequestHash string            `json:"request_hash"`
	Status      int               `json:"status,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Outcome is the guard's verdict for an incoming request.
type Outcome int

const (
	// OutcomeProceed means the caller owns the key and must do the work.
	OutcomeProceed Outcome = iota
	// OutcomeReplay means a completed response exists and must be returned as-is.
	OutcomeReplay
	// OutcomeInFlight means another request holds the key right now.
	OutcomeInFlight
	// OutcomeMismatch means the key was reused with a different payload.
	OutcomeMismatch
	// OutcomeBypass means the store is unavailable and the request runs unguarded.
	OutcomeBypass
)

// BeginResult carries the verdict plus the stored record on replay.
type BeginResult struct {
	Outcome Outcome
	Record  *Record
}

// CompleteInput captures the response to store for future replays.
type CompleteInput struct {
	RequestHash string
	Status      int
	Body        []byte
	Headers     map[string]string
	// Critical extends retention for money-moving operations.
	Critical bool
}

// Guard implements the two-phase idempotency protocol. A Begin that wins the
// key marks it processing; Complete freezes the response for replay. When the
// backing store is down the guard fails open so availability never hinges on
// Redis.
type Guard struct {
	store redis.IdempotencyStore
	cfg   config.IdempotencyConfig
	logg  *logger.Logger
}

// NewGuard wires a guard around the provided store.
func NewGuard(store redis.IdempotencyStore, cfg config.IdempotencyConfig, logg *logger.Logger) (*Guard, error) {
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Guard{store: store, cfg: cfg, logg: logg}, nil
}

// RequestHash fingerprints a request so key reuse with a different payload is
// detectable.
func RequestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Begin claims the key or reports what happened to it previously.
func (g *Guard) Begin(ctx context.Context, scope, key, requestHash string) (BeginResult, error) {
	if scope == "" || key == "" {
		return BeginResult{}, pkgerrors.New(pkgerrors.CodeValidation, "idempotency scope and key are required")
	}

	record := Record{
		State:       StateProcessing,
		RequestHash: requestHash,
		StartedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return BeginResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding idempotency record")
	}

	storeKey := g.store.IdempotencyKey(scope, key)
	acquired, err := g.store.SetNX(ctx, storeKey, string(payload), g.cfg.ProcessingTTL)
	if err != nil {
		g.logg.Warn(g.logg.WithField(ctx, "idempotency_key", storeKey),
			"idempotency store unavailable, proceeding unguarded")
		return BeginResult{Outcome: OutcomeBypass}, nil
	}
	if acquired {
		return BeginResult{Outcome: OutcomeProceed}, nil
	}

	raw, err := g.store.Get(ctx, storeKey)
	if err != nil {
		g.logg.Warn(g.logg.WithField(ctx, "idempotency_key", storeKey),
			"idempotency record unreadable, proceeding unguarded")
		return BeginResult{Outcome: OutcomeBypass}, nil
	}

	var existing Record
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		g.logg.Error(ctx, "corrupt idempotency record", err)
		return BeginResult{Outcome: OutcomeBypass}, nil
	}

	if requestHash != "" && existing.RequestHash != "" && existing.RequestHash != requestHash {
		return BeginResult{Outcome: OutcomeMismatch, Record: &existing}, nil
	}
	if existing.State == StateCompleted {
		return BeginResult{Outcome: OutcomeReplay, Record: &existing}, nil
	}
	return BeginResult{Outcome: OutcomeInFlight, Record: &existing}, nil
}

// Complete freezes the final response under the key. Failures are logged and
// swallowed; the response was already produced.
func (g *Guard) Complete(ctx context.Context, scope, key string, input CompleteInput) {
	if scope == "" || key == "" {
		return
	}

	now := time.Now().UTC()
	record := Record{
		State:       StateCompleted,
		RequestHash: input.RequestHash,
		Status:      input.Status,
		Body:        input.Body,
		Headers:     input.Headers,
		StartedAt:   now,
		CompletedAt: &now,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		g.logg.Error(ctx, "encoding idempotency record", err)
		return
	}

	ttl := g.cfg.CompletedTTL
	if input.Critical && g.cfg.CriticalTTL > ttl {
		ttl = g.cfg.CriticalTTL
	}

	storeKey := g.store.IdempotencyKey(scope, key)
	if err := g.store.Set(ctx, storeKey, string(payload), ttl); err != nil {
		g.logg.Error(g.logg.WithField(ctx, "idempotency_key", storeKey),
			"failed to store idempotency record", err)
	}
}

// Abort releases a processing claim so the client can retry immediately after
// a handler failure.
func (g *Guard) Abort(ctx context.Context, scope, key string) {
	if scope == "" || key == "" {
		return
	}
	storeKey := g.store.IdempotencyKey(scope, key)
	if err := g.store.Del(ctx, storeKey); err != nil {
		g.logg.Error(g.logg.WithField(ctx, "idempotency_key", storeKey),
			"failed to release idempotency claim", err)
	}
}
