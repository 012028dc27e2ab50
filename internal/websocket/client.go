package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const maxBackoff = 30 * time.Second

// TickerHandler receives every ticker update in arrival order. It runs on
// the reading goroutine, so a slow handler delays the stream.
type TickerHandler func(TickerUpdate)

// Client subscribes to Kraken public channels and redials dropped
// connections
type Client struct {
	url               string
	connOpts          []ConnectionOption
	maxReconnects     int
	reconnectInterval time.Duration
	logger            zerolog.Logger

	reqID atomic.Int64
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithURL sets the WebSocket endpoint
func WithURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

// WithReconnect sets how many consecutive redials are tried and the base
// delay between them. The delay doubles per attempt.
func WithReconnect(attempts int, interval time.Duration) ClientOption {
	return func(c *Client) {
		c.maxReconnects = attempts
		c.reconnectInterval = interval
	}
}

// WithConnectionOptions passes options to every dialed connection
func WithConnectionOptions(opts ...ConnectionOption) ClientOption {
	return func(c *Client) {
		c.connOpts = append(c.connOpts, opts...)
	}
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new WebSocket client
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		url:               DefaultURL,
		maxReconnects:     5,
		reconnectInterval: time.Second,
		logger:            zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// URL returns the WebSocket endpoint
func (c *Client) URL() string {
	return c.url
}

// StreamTicker subscribes to the ticker channel of the given websocket pair
// names (e.g. "XBT/USD") and calls handler for each update until ctx is
// done. A canceled context ends the stream with a nil error. A rejected
// subscription is returned at once; other failures are retried.
func (c *Client) StreamTicker(ctx context.Context, pairs []string, handler TickerHandler) error {
	if len(pairs) == 0 {
		return errors.New("no pairs to subscribe")
	}

	attempt := 0
	for {
		subscribed := false
		err := c.session(ctx, pairs, handler, func() { subscribed = true })
		if ctx.Err() != nil {
			return nil
		}

		var subErr *SubscriptionError
		if errors.As(err, &subErr) {
			return err
		}

		if subscribed {
			attempt = 0
		}
		attempt++
		if attempt > c.maxReconnects {
			return fmt.Errorf("ticker stream failed after %d reconnects: %w", c.maxReconnects, err)
		}

		delay := c.backoff(attempt)
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Ticker stream dropped, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.reconnectInterval
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxBackoff)
}

// session runs one connection from dial to the first read error
func (c *Client) session(ctx context.Context, pairs []string, handler TickerHandler, onSubscribed func()) error {
	conn := NewConnection(c.url, c.connOpts...)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
	}()

	req := subscribeRequest{
		Event:        "subscribe",
		ReqID:        c.reqID.Add(1),
		Pair:         pairs,
		Subscription: subscription{Name: "ticker"},
	}
	if err := conn.WriteJSON(ctx, req); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	pending := len(pairs)
	for {
		data, err := conn.Read()
		if err != nil {
			return err
		}

		if isObject(data) {
			var ev event
			if err := json.Unmarshal(data, &ev); err != nil {
				c.logger.Debug().Err(err).Msg("Skipping malformed event")
				continue
			}

			switch ev.Event {
			case "subscriptionStatus":
				if ev.Status == "error" {
					return &SubscriptionError{Pair: ev.Pair, Message: ev.ErrorMessage}
				}
				if ev.Status == "subscribed" {
					pending--
					if pending == 0 {
						onSubscribed()
						c.logger.Info().Strs("pairs", pairs).Msg("Subscribed to ticker")
					}
				}
			case "systemStatus":
				c.logger.Debug().Str("status", ev.Status).Str("version", ev.Version).Msg("Connected to Kraken")
			}
			continue
		}

		update, ok, err := decodeTicker(data)
		if err != nil {
			c.logger.Debug().Err(err).Msg("Skipping malformed frame")
			continue
		}
		if !ok {
			continue
		}

		update.Received = time.Now()
		handler(update)
	}
}
