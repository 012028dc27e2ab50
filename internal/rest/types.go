package rest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderType is the Kraken ordertype field
type OrderType string

const (
	OrderTypeMarket          OrderType = "market"
	OrderTypeLimit           OrderType = "limit"
	OrderTypeStopLoss        OrderType = "stop-loss"
	OrderTypeTakeProfit      OrderType = "take-profit"
	OrderTypeStopLossLimit   OrderType = "stop-loss-limit"
	OrderTypeTakeProfitLimit OrderType = "take-profit-limit"
	OrderTypeSettlePosition  OrderType = "settle-position"
)

var orderTypes = []OrderType{
	OrderTypeMarket,
	OrderTypeLimit,
	OrderTypeStopLoss,
	OrderTypeTakeProfit,
	OrderTypeStopLossLimit,
	OrderTypeTakeProfitLimit,
	OrderTypeSettlePosition,
}

// ParseOrderType accepts both dash and underscore spellings
func ParseOrderType(s string) (OrderType, error) {
	normalized := OrderType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, t := range orderTypes {
		if t == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

// NeedsPrice reports whether the order type requires a price field
func (t OrderType) NeedsPrice() bool {
	switch t {
	case OrderTypeMarket, OrderTypeSettlePosition:
		return false
	}
	return true
}

// Side is the Kraken type field (buy or sell)
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide parses buy/sell case-insensitively
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Order lifecycle states as reported by Kraken
const (
	OrderStatusPending  = "pending"
	OrderStatusOpen     = "open"
	OrderStatusClosed   = "closed"
	OrderStatusCanceled = "canceled"
	OrderStatusExpired  = "expired"
)

// AddOrderRequest holds the fields of an AddOrder call
type AddOrderRequest struct {
	Pair      string
	Side      Side
	OrderType OrderType
	Volume    decimal.Decimal
	Price     decimal.Decimal
	// Validate asks Kraken to check the order without submitting it
	Validate bool
}

// Check validates the request before a nonce is spent on it
func (r *AddOrderRequest) Check() error {
	if r.Pair == "" {
		return fmt.Errorf("pair is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("side is required")
	}
	if r.OrderType == "" {
		return fmt.Errorf("order type is required")
	}
	if !r.Volume.IsPositive() {
		return fmt.Errorf("volume must be positive")
	}
	if r.OrderType.NeedsPrice() && !r.Price.IsPositive() {
		return fmt.Errorf("price is required for %s orders", r.OrderType)
	}
	return nil
}

// OrderDescription is the descr object of an order
type OrderDescription struct {
	Pair      string `json:"pair"`
	Type      string `json:"type"`
	OrderType string `json:"ordertype"`
	Price     string `json:"price"`
	Price2    string `json:"price2"`
	Leverage  string `json:"leverage"`
	Order     string `json:"order"`
	Close     string `json:"close"`
}

// OrderInfo is the detail Kraken returns for an order id
type OrderInfo struct {
	RefID      string           `json:"refid"`
	UserRef    int64            `json:"userref"`
	Status     string           `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	OpenTime   float64          `json:"opentm"`
	StartTime  float64          `json:"starttm"`
	ExpireTime float64          `json:"expiretm"`
	CloseTime  float64          `json:"closetm,omitempty"`
	Descr      OrderDescription `json:"descr"`
	Volume     decimal.Decimal  `json:"vol"`
	VolumeExec decimal.Decimal  `json:"vol_exec"`
	Cost       decimal.Decimal  `json:"cost"`
	Fee        decimal.Decimal  `json:"fee"`
	Price      decimal.Decimal  `json:"price"`
	StopPrice  decimal.Decimal  `json:"stopprice"`
	LimitPrice decimal.Decimal  `json:"limitprice"`
	Misc       string           `json:"misc"`
	OFlags     string           `json:"oflags"`
	Trades     []string         `json:"trades,omitempty"`
}

// IsOpen reports whether the order is still working
func (o OrderInfo) IsOpen() bool {
	return o.Status == OrderStatusOpen || o.Status == OrderStatusPending
}

// Orders maps transaction id to order detail
type Orders map[string]OrderInfo

type openOrdersResult struct {
	Open Orders `json:"open"`
}

type closedOrdersResult struct {
	Closed Orders `json:"closed"`
	Count  int    `json:"count"`
}

type cancelResult struct {
	Count   int  `json:"count"`
	Pending bool `json:"pending"`
}

// AddOrderResult is the server-assigned order descriptor
type AddOrderResult struct {
	Descr struct {
		Order string `json:"order"`
		Close string `json:"close,omitempty"`
	} `json:"descr"`
	TxIDs []string `json:"txid"`
}

// Balances maps asset code to available balance
type Balances map[string]decimal.Decimal

// NonZero drops assets with a zero balance
func (b Balances) NonZero() Balances {
	out := make(Balances, len(b))
	for asset, amount := range b {
		if !amount.IsZero() {
			out[asset] = amount
		}
	}
	return out
}
