package kraken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"krakenbot/internal/rest"
)

// Account is what the assistant shows about the user: balances and open orders
type Account struct {
	Balances   rest.Balances
	OpenOrders rest.Orders
}

// Client combines public market data, the private REST client and a
// cached catalog. The private client may be nil for read-only use.
type Client struct {
	public  *PublicClient
	private *rest.Client
	logger  zerolog.Logger

	catalog     *Catalog
	catalogTime time.Time
	catalogTTL  time.Duration
	catalogMu   sync.RWMutex
}

// NewClient creates a Kraken client
func NewClient(public *PublicClient, private *rest.Client, logger zerolog.Logger) (*Client, error) {
	if public == nil {
		return nil, fmt.Errorf("public client is required")
	}

	return &Client{
		public:     public,
		private:    private,
		logger:     logger,
		catalogTTL: time.Hour,
	}, nil
}

// SetCatalogTTL changes how long asset metadata is cached
func (c *Client) SetCatalogTTL(ttl time.Duration) {
	c.catalogMu.Lock()
	defer c.catalogMu.Unlock()
	c.catalogTTL = ttl
}

// HasCredentials reports whether private calls are possible
func (c *Client) HasCredentials() bool {
	return c.private != nil
}

// Public exposes the market-data client
func (c *Client) Public() *PublicClient {
	return c.public
}

// Status returns Kraken's system status
func (c *Client) Status(ctx context.Context) (*SystemStatus, error) {
	status, err := c.public.SystemStatus(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to get system status")
		return nil, err
	}

	c.logger.Debug().Str("status", status.Status).Msg("System status")
	return status, nil
}

// Catalog returns the asset catalog, refreshing it when stale
func (c *Client) Catalog(ctx context.Context) (*Catalog, error) {
	c.catalogMu.RLock()
	if c.catalog != nil && time.Since(c.catalogTime) < c.catalogTTL {
		catalog := c.catalog
		c.catalogMu.RUnlock()
		return catalog, nil
	}
	c.catalogMu.RUnlock()

	return c.RefreshCatalog(ctx)
}

// RefreshCatalog reloads assets and pairs from Kraken
func (c *Client) RefreshCatalog(ctx context.Context) (*Catalog, error) {
	assets, err := c.public.Assets(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to load assets")
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}

	pairs, err := c.public.AssetPairs(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to load asset pairs")
		return nil, fmt.Errorf("failed to load asset pairs: %w", err)
	}

	catalog := NewCatalog(assets, pairs)

	c.catalogMu.Lock()
	c.catalog = catalog
	c.catalogTime = time.Now()
	c.catalogMu.Unlock()

	nAssets, nPairs := catalog.Len()
	c.logger.Info().
		Int("assets", nAssets).
		Int("pairs", nPairs).
		Msg("Asset catalog refreshed")

	return catalog, nil
}

// Asset looks an asset up by code or altname
func (c *Client) Asset(ctx context.Context, name string) (Asset, error) {
	catalog, err := c.Catalog(ctx)
	if err != nil {
		return Asset{}, err
	}
	return catalog.Asset(name)
}

// Pair resolves the pair trading base against quote
func (c *Client) Pair(ctx context.Context, base, quote string) (AssetPair, error) {
	catalog, err := c.Catalog(ctx)
	if err != nil {
		return AssetPair{}, err
	}

	pair, err := catalog.Pair(base, quote)
	if err != nil {
		c.logger.Warn().
			Str("base", base).
			Str("quote", quote).
			Err(err).
			Msg("Pair lookup failed")
		return AssetPair{}, err
	}
	return pair, nil
}

// Ticker returns the ticker for a pair
func (c *Client) Ticker(ctx context.Context, pair AssetPair) (*Ticker, error) {
	ticker, err := c.public.Ticker(ctx, pair.Name)
	if err != nil {
		c.logger.Error().Err(err).Str("pair", pair.Name).Msg("Failed to get ticker")
		return nil, err
	}
	return ticker, nil
}

// Candles fetches OHLC data for a pair
func (c *Client) Candles(ctx context.Context, pair AssetPair, interval int, since int64) (*OHLC, error) {
	c.logger.Debug().
		Str("pair", pair.Name).
		Int("interval", interval).
		Int64("since", since).
		Msg("Fetching candles")

	ohlc, err := c.public.OHLC(ctx, pair.Name, interval, since)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("pair", pair.Name).
			Int("interval", interval).
			Msg("Failed to fetch candles")
		return nil, err
	}

	c.logger.Debug().
		Str("pair", ohlc.Pair).
		Int("candles", len(ohlc.Candles)).
		Int64("last", ohlc.Last).
		Msg("Candles fetched")
	return ohlc, nil
}

func (c *Client) requirePrivate(op string) error {
	if c.private == nil {
		c.logger.Warn().Str("operation", op).Msg("Private call without credentials")
		return ErrNoCredentials
	}
	return nil
}

// Balance returns non-zero balances
func (c *Client) Balance(ctx context.Context) (rest.Balances, error) {
	if err := c.requirePrivate("Balance"); err != nil {
		return nil, err
	}

	balances, err := c.private.Balance(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to get balance")
		return nil, err
	}

	nonZero := balances.NonZero()
	c.logger.Debug().Int("assets", len(nonZero)).Msg("Balance retrieved")
	return nonZero, nil
}

// Account returns balances together with open orders
func (c *Client) Account(ctx context.Context) (*Account, error) {
	balances, err := c.Balance(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := c.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}

	return &Account{Balances: balances, OpenOrders: orders}, nil
}

// OpenOrders returns the user's open orders
func (c *Client) OpenOrders(ctx context.Context) (rest.Orders, error) {
	if err := c.requirePrivate("OpenOrders"); err != nil {
		return nil, err
	}

	orders, err := c.private.OpenOrders(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to get open orders")
		return nil, err
	}

	c.logger.Debug().Int("count", len(orders)).Msg("Open orders retrieved")
	return orders, nil
}

// ClosedOrders returns closed orders, optionally filtered by userref
func (c *Client) ClosedOrders(ctx context.Context, userref int64) (rest.Orders, error) {
	if err := c.requirePrivate("ClosedOrders"); err != nil {
		return nil, err
	}

	orders, err := c.private.ClosedOrders(ctx, userref)
	if err != nil {
		c.logger.Error().Err(err).Int64("userref", userref).Msg("Failed to get closed orders")
		return nil, err
	}

	c.logger.Debug().Int("count", len(orders)).Msg("Closed orders retrieved")
	return orders, nil
}

// QueryOrders returns the orders with the given txids
func (c *Client) QueryOrders(ctx context.Context, txids []string) (rest.Orders, error) {
	if err := c.requirePrivate("QueryOrders"); err != nil {
		return nil, err
	}

	orders, err := c.private.QueryOrders(ctx, txids)
	if err != nil {
		c.logger.Error().Err(err).Strs("txids", txids).Msg("Failed to query orders")
		return nil, err
	}
	return orders, nil
}

// CancelOrder cancels one order
func (c *Client) CancelOrder(ctx context.Context, txid string) (bool, error) {
	if err := c.requirePrivate("CancelOrder"); err != nil {
		return false, err
	}

	c.logger.Info().Str("txid", txid).Msg("Cancelling order")

	cancelled, err := c.private.CancelOrder(ctx, txid)
	if err != nil {
		c.logger.Error().Err(err).Str("txid", txid).Msg("Failed to cancel order")
		return false, err
	}

	c.logger.Info().Str("txid", txid).Bool("cancelled", cancelled).Msg("Order cancel processed")
	return cancelled, nil
}

// AddOrder places an order
func (c *Client) AddOrder(ctx context.Context, req *rest.AddOrderRequest) (*rest.AddOrderResult, error) {
	if err := c.requirePrivate("AddOrder"); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("order request is required")
	}

	c.logger.Info().
		Str("pair", req.Pair).
		Str("side", string(req.Side)).
		Str("type", string(req.OrderType)).
		Str("volume", req.Volume.String()).
		Str("price", req.Price.String()).
		Bool("validate", req.Validate).
		Msg("Placing order")

	result, err := c.private.AddOrder(ctx, req)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("pair", req.Pair).
			Str("side", string(req.Side)).
			Str("type", string(req.OrderType)).
			Msg("Failed to place order")
		return nil, err
	}

	c.logger.Info().
		Strs("txids", result.TxIDs).
		Str("description", result.Descr.Order).
		Msg("Order placed")
	return result, nil
}
