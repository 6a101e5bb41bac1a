package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/cardrail/backend/api/responses"
	"github.com/cardrail/backend/internal/idempotency"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayHeader         = "X-Idempotency-Replay"
)

type routeMatcher func(string) bool

type idempotencyRule struct {
	method  string
	matcher routeMatcher
	// critical extends the replay retention for money-moving routes.
	critical bool
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, matcher: matchPrefixSuffix("/api/v1/wallets/", "/load"), critical: true},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/api/v1/wallets/", "/spend"), critical: true},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/api/v1/wallets/", "/commission"), critical: true},
	{method: http.MethodPost, matcher: matchExact("/api/v1/transactions"), critical: true},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/api/v1/transactions/", "/reverse"), critical: true},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/api/v1/accounts/", "/statements"), critical: false},
	{method: http.MethodPost, matcher: matchExact("/api/admin/v1/reconciliation/run"), critical: false},
}

// Idempotency applies the two-phase guard to state-changing routes. Replays
// return the stored response verbatim with X-Idempotency-Replay set; a key
// still being processed gets 409 so the client backs off instead of
// double-posting money movement.
func Idempotency(guard *idempotency.Guard, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchRule(r.Method, r.URL.Path)
			if !ok || guard == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if key == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scope := r.Method + "|" + r.URL.Path
			requestHash := idempotency.RequestHash(r.Method, r.URL.Path, body)

			begin, err := guard.Begin(r.Context(), scope, key, requestHash)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			switch begin.Outcome {
			case idempotency.OutcomeReplay:
				writeReplay(w, begin.Record)
				return
			case idempotency.OutcomeInFlight:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInFlight, "request with this idempotency key is still being processed"))
				return
			case idempotency.OutcomeMismatch:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
				return
			case idempotency.OutcomeBypass:
				next.ServeHTTP(w, r)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.statusOrDefault()
			if status >= http.StatusInternalServerError {
				// Release the claim so the client can retry a failed attempt.
				guard.Abort(r.Context(), scope, key)
				return
			}

			var headers map[string]string
			if ct := rec.Header().Get("Content-Type"); ct != "" {
				headers = map[string]string{"Content-Type": ct}
			}
			guard.Complete(r.Context(), scope, key, idempotency.CompleteInput{
				RequestHash: requestHash,
				Status:      status,
				Body:        rec.body.Bytes(),
				Headers:     headers,
				Critical:    rule.critical,
			})
		})
	}
}

func writeReplay(w http.ResponseWriter, record *idempotency.Record) {
	if record == nil {
		return
	}
	for name, value := range record.Headers {
		if value != "" {
			w.Header().Set(name, value)
		}
	}
	w.Header().Set(replayHeader, "true")
	status := record.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write(record.Body)
}

// matchRule resolves a rule against the concrete request path. Matching on
// the URL path rather than the router's pattern keeps the guard independent
// of where in the mount tree the middleware runs.
func matchRule(method, path string) (idempotencyRule, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		return idempotencyRule{}, false
	}
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.matcher(path) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

func matchExact(want string) routeMatcher {
	return func(path string) bool {
		return path == want
	}
}

func matchPrefixSuffix(prefix, suffix string) routeMatcher {
	return func(path string) bool {
		return strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrDefault() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
