// Package filters checks orders against the trading rules Kraken publishes
// for each asset pair, so obviously invalid orders never spend a nonce.
package filters

import (
	"github.com/shopspring/decimal"

	"krakenbot/internal/kraken"
	"krakenbot/internal/rest"
)

// PairFilter contains all filters for a trading pair
type PairFilter struct {
	Pair    string
	AltName string
	Filters []Filter
}

// Filter interface for different filter types
type Filter interface {
	Validate(order Order) error
	Type() string
}

// Order is the part of an order the filters look at
type Order struct {
	Pair   string
	Side   rest.Side
	Type   rest.OrderType
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// OrderFromRequest extracts the checked fields of an AddOrder request
func OrderFromRequest(req *rest.AddOrderRequest) Order {
	return Order{
		Pair:   req.Pair,
		Side:   req.Side,
		Type:   req.OrderType,
		Price:  req.Price,
		Volume: req.Volume,
	}
}

// PriceFilter validates price precision
type PriceFilter struct {
	TickSize decimal.Decimal `json:"tick_size"`
	Decimals int             `json:"pair_decimals"`
}

// LotFilter validates volume constraints
type LotFilter struct {
	OrderMin decimal.Decimal `json:"ordermin"`
	Decimals int             `json:"lot_decimals"`
}

// CostFilter validates the minimum order value in quote currency
type CostFilter struct {
	CostMin decimal.Decimal `json:"costmin"`
}

// FromPair builds the filters Kraken publishes for pair. Rules the pair
// does not publish are left out.
func FromPair(pair kraken.AssetPair) PairFilter {
	pf := PairFilter{Pair: pair.Name, AltName: pair.AltName}

	price := &PriceFilter{TickSize: pair.TickSize, Decimals: pair.PairDecimals}
	if price.TickSize.IsZero() && pair.PairDecimals > 0 {
		price.TickSize = decimal.New(1, -int32(pair.PairDecimals))
	}
	if !price.TickSize.IsZero() {
		pf.Filters = append(pf.Filters, price)
	}

	if pair.OrderMin.IsPositive() || pair.LotDecimals > 0 {
		pf.Filters = append(pf.Filters, &LotFilter{OrderMin: pair.OrderMin, Decimals: pair.LotDecimals})
	}

	if pair.CostMin.IsPositive() {
		pf.Filters = append(pf.Filters, &CostFilter{CostMin: pair.CostMin})
	}

	return pf
}
