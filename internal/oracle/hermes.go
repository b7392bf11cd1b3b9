// Package oracle fetches reference prices from a Pyth Hermes price service
// and converts them to integer cents.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

const latestPricePath = "/v2/updates/price/latest"

// Config configures a Hermes client.
type Config struct {
	BaseURL string
	FeedID  string
	Timeout time.Duration
}

// HermesClient reads the latest parsed price update for one feed. It never
// retries and never caches; every call is a fresh request.
type HermesClient struct {
	http   *resty.Client
	feedID string
	logger *slog.Logger
}

// NewHermesClient returns a client for cfg.
func NewHermesClient(cfg Config, logger *slog.Logger) *HermesClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &HermesClient{
		http:   client,
		feedID: cfg.FeedID,
		logger: logger.With(slog.String("component", "oracle")),
	}
}

type latestResponse struct {
	Parsed []parsedUpdate `json:"parsed"`
}

type parsedUpdate struct {
	ID    string     `json:"id"`
	Price priceField `json:"price"`
}

type priceField struct {
	Price       json.RawMessage `json:"price"`
	Conf        string          `json:"conf"`
	Expo        *int32          `json:"expo"`
	PublishTime int64           `json:"publish_time"`
}

// FetchPrice returns the feed's latest price in cents. Every failure wraps
// domain.ErrOracleUnavailable.
func (c *HermesClient) FetchPrice(ctx context.Context) (int64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(url.Values{
			"ids[]":  []string{c.feedID},
			"parsed": []string{"true"},
		}).
		Get(latestPricePath)
	if err != nil {
		return 0, fmt.Errorf("%w: request: %v", domain.ErrOracleUnavailable, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%w: status %d", domain.ErrOracleUnavailable, resp.StatusCode())
	}

	var body latestResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", domain.ErrOracleUnavailable, err)
	}
	if len(body.Parsed) == 0 {
		return 0, fmt.Errorf("%w: empty parsed price list", domain.ErrOracleUnavailable)
	}

	p := body.Parsed[0].Price
	if len(p.Price) == 0 || p.Expo == nil {
		return 0, fmt.Errorf("%w: missing price or expo", domain.ErrOracleUnavailable)
	}
	mantissa := strings.Trim(string(p.Price), `"`)

	cents, err := ToCents(mantissa, *p.Expo)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}

	c.logger.DebugContext(ctx, "price fetched",
		slog.String("mantissa", mantissa),
		slog.Int("expo", int(*p.Expo)),
		slog.Int64("cents", cents),
		slog.Int64("publish_time", p.PublishTime),
	)
	return cents, nil
}

// Pyth feeds publish exponents around -8; anything far outside is garbage and
// would make the decimal shift arbitrarily expensive.
const (
	minExpo = -30
	maxExpo = 30
)

// ToCents computes round(mantissa * 10^expo * 100), rounding half away from
// zero. The conversion is exact; no floating point is involved.
func ToCents(mantissa string, expo int32) (int64, error) {
	if expo < minExpo || expo > maxExpo {
		return 0, fmt.Errorf("oracle: exponent %d outside [%d, %d]", expo, minExpo, maxExpo)
	}
	m, err := decimal.NewFromString(mantissa)
	if err != nil {
		return 0, fmt.Errorf("oracle: invalid mantissa %q: %w", mantissa, err)
	}
	if !m.IsInteger() {
		return 0, fmt.Errorf("oracle: mantissa %q is not an integer", mantissa)
	}
	cents := m.Shift(expo + 2).Round(0)
	bi := cents.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("oracle: price %s overflows int64 cents", cents.String())
	}
	return bi.Int64(), nil
}
