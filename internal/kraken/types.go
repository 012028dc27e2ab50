package kraken

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Asset is one entry of /0/public/Assets. Fields Kraken may add later are
// kept in Extra.
type Asset struct {
	Name            string                     `json:"-"`
	AltName         string                     `json:"altname"`
	AClass          string                     `json:"aclass"`
	Decimals        int                        `json:"decimals"`
	DisplayDecimals int                        `json:"display_decimals"`
	Status          string                     `json:"status,omitempty"`
	Extra           map[string]json.RawMessage `json:"-"`
}

var assetFields = []string{"altname", "aclass", "decimals", "display_decimals", "status"}

// UnmarshalJSON decodes the declared fields and keeps the rest in Extra
func (a *Asset) UnmarshalJSON(data []byte) error {
	type plain Asset
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := extraFields(data, assetFields)
	if err != nil {
		return err
	}
	*a = Asset(p)
	a.Extra = extra
	return nil
}

// AssetPair is one entry of /0/public/AssetPairs
type AssetPair struct {
	Name         string                     `json:"-"`
	AltName      string                     `json:"altname"`
	WSName       string                     `json:"wsname"`
	AClassBase   string                     `json:"aclass_base"`
	Base         string                     `json:"base"`
	AClassQuote  string                     `json:"aclass_quote"`
	Quote        string                     `json:"quote"`
	PairDecimals int                        `json:"pair_decimals"`
	CostDecimals int                        `json:"cost_decimals"`
	LotDecimals  int                        `json:"lot_decimals"`
	OrderMin     decimal.Decimal            `json:"ordermin"`
	CostMin      decimal.Decimal            `json:"costmin"`
	TickSize     decimal.Decimal            `json:"tick_size"`
	Status       string                     `json:"status"`
	Extra        map[string]json.RawMessage `json:"-"`

	// DisplayName is "<base altname>/<quote altname>", filled in by the catalog
	DisplayName string `json:"-"`
}

var assetPairFields = []string{
	"altname", "wsname", "aclass_base", "base", "aclass_quote", "quote",
	"pair_decimals", "cost_decimals", "lot_decimals", "ordermin", "costmin", "tick_size", "status",
}

// UnmarshalJSON decodes the declared fields and keeps the rest in Extra
func (p *AssetPair) UnmarshalJSON(data []byte) error {
	type plain AssetPair
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := extraFields(data, assetPairFields)
	if err != nil {
		return err
	}
	*p = AssetPair(v)
	p.Extra = extra
	return nil
}

func extraFields(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// ServerTime is the result of /0/public/Time
type ServerTime struct {
	UnixTime int64  `json:"unixtime"`
	RFC1123  string `json:"rfc1123"`
}

// Time converts the unix timestamp
func (s ServerTime) Time() time.Time {
	return time.Unix(s.UnixTime, 0).UTC()
}

// SystemStatus is the result of /0/public/SystemStatus
type SystemStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Online reports whether the exchange accepts trading
func (s SystemStatus) Online() bool {
	return s.Status == "online"
}

// Ticker is the per-pair entry of /0/public/Ticker.
// Arrays follow Kraken's layout: a/b = [price, whole lot volume, lot volume],
// c = [price, lot volume], v/p/l/h = [today, last 24h], t = [today, last 24h].
type Ticker struct {
	Ask          []string `json:"a"`
	Bid          []string `json:"b"`
	LastTrade    []string `json:"c"`
	Volume       []string `json:"v"`
	VWAP         []string `json:"p"`
	Trades       []int64  `json:"t"`
	Low          []string `json:"l"`
	High         []string `json:"h"`
	OpeningPrice string   `json:"o"`
}

// LastPrice returns the last trade price
func (t Ticker) LastPrice() decimal.Decimal {
	return firstDecimal(t.LastTrade)
}

// Mid returns the midpoint of best bid and ask
func (t Ticker) Mid() decimal.Decimal {
	ask, bid := firstDecimal(t.Ask), firstDecimal(t.Bid)
	if ask.IsZero() || bid.IsZero() {
		return t.LastPrice()
	}
	return ask.Add(bid).Div(decimal.NewFromInt(2))
}

func firstDecimal(values []string) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(values[0])
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Candle is one OHLC row
type Candle struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	VWAP   decimal.Decimal
	Volume decimal.Decimal
	Count  int64
}

// Column returns a named column value as float64
func (c Candle) Column(name string) (float64, bool) {
	var d decimal.Decimal
	switch name {
	case "open":
		d = c.Open
	case "high":
		d = c.High
	case "low":
		d = c.Low
	case "close":
		d = c.Close
	case "vwap":
		d = c.VWAP
	case "volume":
		d = c.Volume
	case "count":
		return float64(c.Count), true
	default:
		return 0, false
	}
	return d.InexactFloat64(), true
}

// CandleColumns lists the columns a candle exposes
var CandleColumns = []string{"open", "high", "low", "close", "vwap", "volume", "count"}

// OHLC is the parsed result of /0/public/OHLC
type OHLC struct {
	Pair    string
	Candles []Candle
	// Last is the id to pass as since when polling for new data
	Last int64
}

// parseCandle converts [time, open, high, low, close, vwap, volume, count]
func parseCandle(row []json.RawMessage) (Candle, error) {
	if len(row) < 8 {
		return Candle{}, fmt.Errorf("candle row has %d fields, want 8", len(row))
	}

	var ts int64
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return Candle{}, fmt.Errorf("candle time: %w", err)
	}

	values := make([]decimal.Decimal, 6)
	for i := range values {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return Candle{}, fmt.Errorf("candle field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Candle{}, fmt.Errorf("candle field %d: %w", i+1, err)
		}
		values[i] = d
	}

	var count int64
	if err := json.Unmarshal(row[7], &count); err != nil {
		return Candle{}, fmt.Errorf("candle count: %w", err)
	}

	return Candle{
		Time:   time.Unix(ts, 0).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		VWAP:   values[4],
		Volume: values[5],
		Count:  count,
	}, nil
}

// ValidIntervals are the OHLC intervals Kraken accepts, in minutes
var ValidIntervals = []int{1, 5, 15, 30, 60, 240, 1440, 10080, 21600}

// DefaultInterval is one hour
const DefaultInterval = 60

// IsValidInterval checks an OHLC interval
func IsValidInterval(minutes int) bool {
	for _, v := range ValidIntervals {
		if v == minutes {
			return true
		}
	}
	return false
}

func formatInterval(minutes int) string {
	return strconv.Itoa(minutes)
}
