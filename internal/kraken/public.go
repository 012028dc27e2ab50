package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"krakenbot/internal/rest"
)

const publicPrefix = "/0/public/"

// PublicClient reads unauthenticated market data. Every call is an
// idempotent GET, so transient failures are retried.
type PublicClient struct {
	client   *resty.Client
	observer rest.Observer
}

// PublicOption configures the public client
type PublicOption func(*PublicClient)

// WithRetry sets how often and how long to back off on transient failures
func WithRetry(count int, wait, maxWait time.Duration) PublicOption {
	return func(p *PublicClient) {
		p.client.SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(maxWait)
	}
}

// WithPublicObserver attaches a call observer
func WithPublicObserver(observer rest.Observer) PublicOption {
	return func(p *PublicClient) {
		p.observer = observer
	}
}

// NewPublicClient creates a market-data client against baseURL
func NewPublicClient(baseURL string, timeout time.Duration, opts ...PublicOption) *PublicClient {
	if baseURL == "" {
		baseURL = rest.DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "krakenbot").
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		})

	p := &PublicClient{client: client}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BaseURL returns the configured endpoint
func (p *PublicClient) BaseURL() string {
	return p.client.BaseURL
}

func (p *PublicClient) get(ctx context.Context, endpoint string, params map[string]string, out any) (err error) {
	if p.observer != nil {
		start := time.Now()
		defer func() {
			p.observer.ObserveCall(endpoint, callOutcome(err), time.Since(start))
		}()
	}

	req := p.client.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(publicPrefix + endpoint)
	if err != nil {
		return &rest.TransportError{Op: endpoint, Err: errors.Wrap(err, "GET "+endpoint)}
	}

	return rest.DecodeEnvelope(endpoint, resp.StatusCode(), resp.Body(), out)
}

// ServerTime returns Kraken's clock
func (p *PublicClient) ServerTime(ctx context.Context) (*ServerTime, error) {
	var result ServerTime
	if err := p.get(ctx, "Time", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SystemStatus returns the exchange's trading state
func (p *PublicClient) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var result SystemStatus
	if err := p.get(ctx, "SystemStatus", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Assets lists assets, optionally limited to names
func (p *PublicClient) Assets(ctx context.Context, names ...string) (map[string]Asset, error) {
	var params map[string]string
	if len(names) > 0 {
		params = map[string]string{"asset": strings.Join(names, ",")}
	}

	var result map[string]Asset
	if err := p.get(ctx, "Assets", params, &result); err != nil {
		return nil, err
	}
	for name, asset := range result {
		asset.Name = name
		result[name] = asset
	}
	return result, nil
}

// AssetPairs lists tradable pairs, optionally limited to names
func (p *PublicClient) AssetPairs(ctx context.Context, names ...string) (map[string]AssetPair, error) {
	var params map[string]string
	if len(names) > 0 {
		params = map[string]string{"pair": strings.Join(names, ",")}
	}

	var result map[string]AssetPair
	if err := p.get(ctx, "AssetPairs", params, &result); err != nil {
		return nil, err
	}
	for name, pair := range result {
		pair.Name = name
		result[name] = pair
	}
	return result, nil
}

// Ticker returns the ticker for one pair
func (p *PublicClient) Ticker(ctx context.Context, pair string) (*Ticker, error) {
	if pair == "" {
		return nil, fmt.Errorf("pair is required")
	}

	var result map[string]Ticker
	if err := p.get(ctx, "Ticker", map[string]string{"pair": pair}, &result); err != nil {
		return nil, err
	}
	// Kraken answers with its own pair name, which may differ from the one requested
	for _, t := range result {
		return &t, nil
	}
	return nil, &rest.MalformedResponse{Field: "result." + pair}
}

// OHLC fetches candles for pair at interval minutes. since is a unix
// timestamp; zero asks for the most recent window.
func (p *PublicClient) OHLC(ctx context.Context, pair string, interval int, since int64) (*OHLC, error) {
	if pair == "" {
		return nil, fmt.Errorf("pair is required")
	}
	if interval == 0 {
		interval = DefaultInterval
	}
	if !IsValidInterval(interval) {
		return nil, fmt.Errorf("%w: %d (valid: %v)", ErrInvalidInterval, interval, ValidIntervals)
	}

	params := map[string]string{
		"pair":     pair,
		"interval": formatInterval(interval),
	}
	if since > 0 {
		params["since"] = strconv.FormatInt(since, 10)
	}

	var result map[string]json.RawMessage
	if err := p.get(ctx, "OHLC", params, &result); err != nil {
		return nil, err
	}

	return parseOHLC(result)
}

func parseOHLC(result map[string]json.RawMessage) (*OHLC, error) {
	ohlc := &OHLC{}
	for key, raw := range result {
		if key == "last" {
			if err := json.Unmarshal(raw, &ohlc.Last); err != nil {
				return nil, &rest.MalformedResponse{Field: "result.last", Err: err}
			}
			continue
		}

		var rows [][]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, &rest.MalformedResponse{Field: "result." + key, Err: err}
		}
		ohlc.Pair = key
		ohlc.Candles = make([]Candle, 0, len(rows))
		for _, row := range rows {
			candle, err := parseCandle(row)
			if err != nil {
				return nil, &rest.MalformedResponse{Field: "result." + key, Err: err}
			}
			ohlc.Candles = append(ohlc.Candles, candle)
		}
	}

	if ohlc.Pair == "" {
		return nil, &rest.MalformedResponse{Field: "result.<pair>"}
	}
	return ohlc, nil
}

func callOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *rest.APIError
	var transportErr *rest.TransportError
	var malformed *rest.MalformedResponse
	switch {
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.As(err, &transportErr):
		return "transport_error"
	case errors.As(err, &malformed):
		return "malformed"
	}
	return "error"
}
