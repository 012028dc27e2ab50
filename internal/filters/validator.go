package filters

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"krakenbot/internal/kraken"
)

// Validator validates orders against pair filters
type Validator struct {
	filters map[string]*PairFilter
	mu      sync.RWMutex
}

// NewValidator indexes the filters of pairs by name and altname
func NewValidator(pairs []kraken.AssetPair, logger zerolog.Logger) *Validator {
	v := &Validator{
		filters: make(map[string]*PairFilter, 2*len(pairs)),
	}

	for _, pair := range pairs {
		pf := FromPair(pair)
		if err := checkConsistency(pair); err != nil {
			logger.Warn().Str("pair", pair.Name).Err(err).Msg("Inconsistent pair rules")
		}

		v.filters[strings.ToUpper(pf.Pair)] = &pf
		if pf.AltName != "" {
			v.filters[strings.ToUpper(pf.AltName)] = &pf
		}
	}

	return v
}

// checkConsistency reports rules that contradict each other
func checkConsistency(pair kraken.AssetPair) error {
	if !pair.TickSize.IsZero() && pair.PairDecimals > 0 {
		if -pair.TickSize.Exponent() > int32(pair.PairDecimals) {
			return fmt.Errorf("tick size %s is finer than %d price decimals",
				pair.TickSize.String(), pair.PairDecimals)
		}
	}
	if pair.OrderMin.IsNegative() || pair.CostMin.IsNegative() {
		return fmt.Errorf("negative minimum")
	}
	return nil
}

func (v *Validator) lookup(pair string) (*PairFilter, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	pf, ok := v.filters[strings.ToUpper(pair)]
	return pf, ok
}

// Validate checks an order against its pair's filters
func (v *Validator) Validate(order Order) error {
	pf, ok := v.lookup(order.Pair)
	if !ok {
		return fmt.Errorf("%w: %s", kraken.ErrUnknownPair, order.Pair)
	}

	for _, filter := range pf.Filters {
		if err := filter.Validate(order); err != nil {
			return fmt.Errorf("%s %s: %w", pf.AltName, filter.Type(), err)
		}
	}

	return nil
}

// RoundPrice rounds a price down to the pair's tick size
func (v *Validator) RoundPrice(pair string, price decimal.Decimal) decimal.Decimal {
	pf, ok := v.lookup(pair)
	if !ok {
		return price
	}

	for _, filter := range pf.Filters {
		if f, ok := filter.(*PriceFilter); ok && !f.TickSize.IsZero() {
			return price.Div(f.TickSize).Floor().Mul(f.TickSize)
		}
	}
	return price
}

// RoundVolume truncates a volume to the pair's lot decimals
func (v *Validator) RoundVolume(pair string, volume decimal.Decimal) decimal.Decimal {
	pf, ok := v.lookup(pair)
	if !ok {
		return volume
	}

	for _, filter := range pf.Filters {
		if f, ok := filter.(*LotFilter); ok && f.Decimals > 0 {
			return volume.Truncate(int32(f.Decimals))
		}
	}
	return volume
}

// Validate checks the price is a multiple of the tick size
func (f *PriceFilter) Validate(order Order) error {
	if !order.Type.NeedsPrice() {
		return nil
	}

	if !order.Price.IsPositive() {
		return fmt.Errorf("price must be positive")
	}

	if remainder := order.Price.Mod(f.TickSize); !remainder.IsZero() {
		return fmt.Errorf("price %s is not a multiple of tick size %s",
			order.Price.String(), f.TickSize.String())
	}

	return nil
}

func (f *PriceFilter) Type() string {
	return "PRICE"
}

// Validate checks the minimum volume and its precision
func (f *LotFilter) Validate(order Order) error {
	if order.Volume.LessThan(f.OrderMin) {
		return fmt.Errorf("volume below minimum: %s < %s", order.Volume.String(), f.OrderMin.String())
	}

	if f.Decimals > 0 && !order.Volume.Equal(order.Volume.Truncate(int32(f.Decimals))) {
		return fmt.Errorf("volume %s has more than %d decimals", order.Volume.String(), f.Decimals)
	}

	return nil
}

func (f *LotFilter) Type() string {
	return "LOT_SIZE"
}

// Validate checks price times volume. Orders without a price are left to
// Kraken, which knows the market price.
func (f *CostFilter) Validate(order Order) error {
	if !order.Type.NeedsPrice() || order.Price.IsZero() {
		return nil
	}

	cost := order.Price.Mul(order.Volume)
	if cost.LessThan(f.CostMin) {
		return fmt.Errorf("order value below minimum: %s < %s", cost.String(), f.CostMin.String())
	}

	return nil
}

func (f *CostFilter) Type() string {
	return "COST_MIN"
}
