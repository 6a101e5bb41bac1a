package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
)

const (
	feedDateFormat       = "2006-01-02"
	defaultFeedHTTPLimit = 30 * time.Second
)

var (
	errFeedURLRequired    = errors.New("settlement feed base URL is required")
	errFeedLoggerRequired = errors.New("settlement feed logger is required")
)

type feedSettlement struct {
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type feedResponse struct {
	Settlements []feedSettlement `json:"settlements"`
}

// HTTPFeed pulls the card network's daily settlement export over HTTP.
type HTTPFeed struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logg    *logger.Logger
}

// NewHTTPFeed validates the feed credentials and builds the client.
func NewHTTPFeed(baseURL, apiKey string, httpClient *http.Client, logg *logger.Logger) (*HTTPFeed, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errFeedURLRequired
	}
	if logg == nil {
		return nil, errFeedLoggerRequired
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFeedHTTPLimit}
	}
	return &HTTPFeed{baseURL: baseURL, apiKey: apiKey, client: httpClient, logg: logg}, nil
}

// FetchSettlements returns every settled token the network reports for the date.
func (f *HTTPFeed) FetchSettlements(ctx context.Context, date time.Time) ([]SettlementRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/settlements?%s", f.baseURL, url.Values{
		"date": []string{date.UTC().Format(feedDateFormat)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build settlement feed request")
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch settlement feed")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("settlement feed returned status %d", resp.StatusCode))
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode settlement feed response")
	}

	records := make([]SettlementRecord, 0, len(payload.Settlements))
	for _, item := range payload.Settlements {
		record, err := item.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	ctx = f.logg.WithFields(ctx, map[string]any{
		"feed_date": date.UTC().Format(feedDateFormat),
		"records":   len(records),
	})
	f.logg.Info(ctx, "settlement feed fetched")

	return records, nil
}

func (s feedSettlement) toRecord() (SettlementRecord, error) {
	token := strings.TrimSpace(s.Token)
	if token == "" {
		return SettlementRecord{}, pkgerrors.New(pkgerrors.CodeDependency, "settlement feed row missing token")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(s.Amount))
	if err != nil {
		return SettlementRecord{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("settlement %s has malformed amount", token))
	}
	currency := enums.Currency(strings.ToUpper(strings.TrimSpace(s.Currency)))
	if !currency.IsValid() {
		return SettlementRecord{}, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("settlement %s has unsupported currency %q", token, s.Currency))
	}
	return SettlementRecord{Token: token, Amount: amount, Currency: currency}, nil
}
