package kraken

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var (
	// ErrUnknownAsset is returned when a name matches neither an asset code nor an altname
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrUnknownPair is returned when no tradable pair joins two assets
	ErrUnknownPair = errors.New("unknown asset pair")
	// ErrInvalidInterval is returned for an OHLC interval Kraken does not serve
	ErrInvalidInterval = errors.New("invalid OHLC interval")
	// ErrNoCredentials is returned by private calls when no API key is configured
	ErrNoCredentials = errors.New("kraken API credentials not configured")
)

// Catalog resolves user-facing asset and pair names against Kraken's metadata.
// Kraken names assets internally ("XXBT") and publicly by altname ("XBT").
type Catalog struct {
	assets  map[string]Asset
	byAlt   map[string]string
	pairs   map[string]AssetPair
	ordered []string
}

// NewCatalog indexes assets and pairs
func NewCatalog(assets map[string]Asset, pairs map[string]AssetPair) *Catalog {
	c := &Catalog{
		assets: make(map[string]Asset, len(assets)),
		byAlt:  make(map[string]string, len(assets)),
		pairs:  make(map[string]AssetPair, len(pairs)),
	}

	for name, asset := range assets {
		asset.Name = name
		c.assets[strings.ToUpper(name)] = asset
		if asset.AltName != "" {
			c.byAlt[strings.ToUpper(asset.AltName)] = name
		}
	}

	for name, pair := range pairs {
		pair.Name = name
		pair.DisplayName = c.displayName(pair)
		c.pairs[name] = pair
	}

	// dark pool pairs share base and quote with their lit twin
	c.ordered = lo.Filter(lo.Keys(c.pairs), func(name string, _ int) bool {
		return !strings.HasSuffix(name, ".d")
	})
	sort.Strings(c.ordered)

	return c
}

func (c *Catalog) displayName(pair AssetPair) string {
	base, quote := pair.Base, pair.Quote
	if a, ok := c.assets[strings.ToUpper(base)]; ok && a.AltName != "" {
		base = a.AltName
	}
	if a, ok := c.assets[strings.ToUpper(quote)]; ok && a.AltName != "" {
		quote = a.AltName
	}
	return base + "/" + quote
}

// Asset resolves an asset by internal code or altname, case-insensitively
func (c *Catalog) Asset(name string) (Asset, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if asset, ok := c.assets[key]; ok {
		return asset, nil
	}
	if code, ok := c.byAlt[key]; ok {
		return c.assets[strings.ToUpper(code)], nil
	}
	return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, name)
}

// Pair finds the pair trading base against quote
func (c *Catalog) Pair(base, quote string) (AssetPair, error) {
	a, err := c.Asset(base)
	if err != nil {
		return AssetPair{}, err
	}
	b, err := c.Asset(quote)
	if err != nil {
		return AssetPair{}, err
	}

	joined := strings.ToUpper(a.AltName + b.AltName)
	for _, name := range c.ordered {
		pair := c.pairs[name]
		if pair.Base == a.Name && pair.Quote == b.Name {
			return pair, nil
		}
		if strings.ToUpper(pair.AltName) == joined {
			return pair, nil
		}
	}
	return AssetPair{}, fmt.Errorf("%w: %s/%s", ErrUnknownPair, a.AltName, b.AltName)
}

// PairByName looks a pair up by its Kraken name, altname or websocket name
func (c *Catalog) PairByName(name string) (AssetPair, error) {
	if pair, ok := c.pairs[name]; ok {
		return pair, nil
	}
	key := strings.ToUpper(name)
	for _, n := range c.ordered {
		pair := c.pairs[n]
		if strings.ToUpper(pair.AltName) == key || strings.ToUpper(pair.WSName) == key {
			return pair, nil
		}
	}
	return AssetPair{}, fmt.Errorf("%w: %s", ErrUnknownPair, name)
}

// Assets returns every asset sorted by altname
func (c *Catalog) Assets() []Asset {
	assets := lo.Values(c.assets)
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].AltName < assets[j].AltName
	})
	return assets
}

// Pairs returns every lit pair sorted by Kraken name
func (c *Catalog) Pairs() []AssetPair {
	return lo.Map(c.ordered, func(name string, _ int) AssetPair {
		return c.pairs[name]
	})
}

// Len returns the number of assets and pairs indexed
func (c *Catalog) Len() (assets, pairs int) {
	return len(c.assets), len(c.ordered)
}
