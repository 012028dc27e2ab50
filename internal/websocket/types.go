// Package websocket streams public market data from Kraken's WebSocket API.
package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultURL is Kraken's public WebSocket endpoint
const DefaultURL = "wss://ws.kraken.com"

// ConnectionState represents WebSocket connection status
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type subscription struct {
	Name string `json:"name"`
}

// subscribeRequest starts a channel for the given websocket pair names
type subscribeRequest struct {
	Event        string       `json:"event"`
	ReqID        int64        `json:"reqid,omitempty"`
	Pair         []string     `json:"pair"`
	Subscription subscription `json:"subscription"`
}

// event is the envelope of every object frame: systemStatus,
// subscriptionStatus, heartbeat and pong
type event struct {
	Event        string `json:"event"`
	Status       string `json:"status"`
	Pair         string `json:"pair"`
	ErrorMessage string `json:"errorMessage"`
	ChannelName  string `json:"channelName"`
	Version      string `json:"version"`
}

// SubscriptionError is a subscription Kraken refused
type SubscriptionError struct {
	Pair    string
	Message string
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %s rejected: %s", e.Pair, e.Message)
}

// TickerUpdate is one ticker frame. Rolling values cover the last 24 hours.
type TickerUpdate struct {
	Pair     string          `json:"pair"`
	Ask      decimal.Decimal `json:"ask"`
	Bid      decimal.Decimal `json:"bid"`
	Last     decimal.Decimal `json:"last"`
	Volume   decimal.Decimal `json:"volume_24h"`
	VWAP     decimal.Decimal `json:"vwap_24h"`
	Low      decimal.Decimal `json:"low_24h"`
	High     decimal.Decimal `json:"high_24h"`
	Open     decimal.Decimal `json:"open_24h"`
	Trades   int64           `json:"trades_24h"`
	Received time.Time       `json:"received"`
}

// Mid returns the midpoint of best bid and ask
func (t TickerUpdate) Mid() decimal.Decimal {
	if t.Ask.IsZero() || t.Bid.IsZero() {
		return t.Last
	}
	return t.Ask.Add(t.Bid).Div(decimal.NewFromInt(2))
}

// ChangePercent is the move of the last price against the 24h open
func (t TickerUpdate) ChangePercent() decimal.Decimal {
	if t.Open.IsZero() {
		return decimal.Zero
	}
	return t.Last.Sub(t.Open).Div(t.Open).Mul(decimal.NewFromInt(100))
}

// tickerPayload mirrors the REST ticker except that every rolling field,
// the opening price included, is a [today, last 24h] pair
type tickerPayload struct {
	Ask    fields  `json:"a"`
	Bid    fields  `json:"b"`
	Close  fields  `json:"c"`
	Volume fields  `json:"v"`
	VWAP   fields  `json:"p"`
	Trades []int64 `json:"t"`
	Low    fields  `json:"l"`
	High   fields  `json:"h"`
	Open   fields  `json:"o"`
}

// fields is an array of numbers that Kraken sends as strings, except for
// whole lot volumes which arrive as plain integers. A bare string decodes
// as a one-element array.
type fields []string

func (f *fields) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = fields{single}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(fields, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &out[i]); err != nil {
			out[i] = string(bytes.TrimSpace(r))
		}
	}
	*f = out
	return nil
}

func isObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// decodeTicker parses a channel frame [channelID, payload, "ticker", pair].
// Frames of other channels report ok == false.
func decodeTicker(data []byte) (update TickerUpdate, ok bool, err error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return TickerUpdate{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if len(frame) < 4 {
		return TickerUpdate{}, false, fmt.Errorf("frame has %d elements, want 4", len(frame))
	}

	var channel, pair string
	if err := json.Unmarshal(frame[len(frame)-2], &channel); err != nil {
		return TickerUpdate{}, false, fmt.Errorf("decode channel name: %w", err)
	}
	if channel != "ticker" {
		return TickerUpdate{}, false, nil
	}
	if err := json.Unmarshal(frame[len(frame)-1], &pair); err != nil {
		return TickerUpdate{}, false, fmt.Errorf("decode pair: %w", err)
	}

	var p tickerPayload
	if err := json.Unmarshal(frame[1], &p); err != nil {
		return TickerUpdate{}, false, fmt.Errorf("decode ticker: %w", err)
	}

	update = TickerUpdate{
		Pair:   pair,
		Ask:    pick(p.Ask, 0),
		Bid:    pick(p.Bid, 0),
		Last:   pick(p.Close, 0),
		Volume: pick(p.Volume, 1),
		VWAP:   pick(p.VWAP, 1),
		Low:    pick(p.Low, 1),
		High:   pick(p.High, 1),
		Open:   pick(p.Open, len(p.Open)-1),
	}
	if len(p.Trades) > 1 {
		update.Trades = p.Trades[1]
	}
	return update, true, nil
}

func pick(values []string, i int) decimal.Decimal {
	if i < 0 || i >= len(values) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(values[i])
	if err != nil {
		return decimal.Zero
	}
	return d
}
