package rest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"krakenbot/internal/auth"
)

// Balance returns available balance per asset
func (c *Client) Balance(ctx context.Context) (Balances, error) {
	var balances Balances
	if err := c.doPrivate(ctx, "Balance", nil, &balances); err != nil {
		return nil, ErrorWithContext(err, "Balance")
	}
	return balances, nil
}

// OpenOrders lists open orders including their trades
func (c *Client) OpenOrders(ctx context.Context) (Orders, error) {
	params := auth.NewPayload().Set("trades", "true")

	var result openOrdersResult
	if err := c.doPrivate(ctx, "OpenOrders", params, &result); err != nil {
		return nil, ErrorWithContext(err, "OpenOrders")
	}
	if result.Open == nil {
		return nil, ErrorWithContext(&MalformedResponse{Field: "open"}, "OpenOrders")
	}
	return result.Open, nil
}

// ClosedOrders lists closed orders, optionally restricted to a user reference.
// A zero userref means no filter.
func (c *Client) ClosedOrders(ctx context.Context, userref int64) (Orders, error) {
	params := auth.NewPayload()
	if userref != 0 {
		params.Set("userref", strconv.FormatInt(userref, 10))
	}

	var result closedOrdersResult
	if err := c.doPrivate(ctx, "ClosedOrders", params, &result); err != nil {
		return nil, ErrorWithContext(err, "ClosedOrders")
	}
	if result.Closed == nil {
		return nil, ErrorWithContext(&MalformedResponse{Field: "closed"}, "ClosedOrders")
	}
	return result.Closed, nil
}

// QueryOrders fetches detail for the given transaction ids
func (c *Client) QueryOrders(ctx context.Context, txids []string) (Orders, error) {
	joined := JoinTxIDs(txids)
	if joined == "" {
		return nil, fmt.Errorf("at least one txid is required")
	}
	params := auth.NewPayload().
		Set("txid", joined).
		Set("trades", "true")

	var orders Orders
	if err := c.doPrivate(ctx, "QueryOrders", params, &orders); err != nil {
		return nil, ErrorWithContext(err, "QueryOrders")
	}
	return orders, nil
}

// CancelOrder cancels an open order and reports whether Kraken canceled it
func (c *Client) CancelOrder(ctx context.Context, txid string) (bool, error) {
	if txid == "" {
		return false, fmt.Errorf("txid is required")
	}
	params := auth.NewPayload().Set("txid", txid)

	var result cancelResult
	if err := c.doPrivate(ctx, "CancelOrder", params, &result); err != nil {
		return false, ErrorWithContext(err, "CancelOrder")
	}
	return result.Count > 0 || result.Pending, nil
}

// AddOrder places an order and returns the server-assigned descriptor
func (c *Client) AddOrder(ctx context.Context, req *AddOrderRequest) (*AddOrderResult, error) {
	if req == nil {
		return nil, fmt.Errorf("order request is required")
	}
	if err := req.Check(); err != nil {
		return nil, err
	}

	params := auth.NewPayload().
		Set("ordertype", string(req.OrderType)).
		Set("type", string(req.Side)).
		Set("volume", req.Volume.String()).
		Set("pair", req.Pair)
	if req.OrderType.NeedsPrice() || !req.Price.IsZero() {
		params.Set("price", req.Price.String())
	}
	if req.Validate {
		params.Set("validate", "true")
	}

	var result AddOrderResult
	if err := c.doPrivate(ctx, "AddOrder", params, &result); err != nil {
		return nil, ErrorWithContext(err, "AddOrder")
	}
	return &result, nil
}

// JoinTxIDs formats ids the way QueryOrders expects them: "A, B, C"
func JoinTxIDs(txids []string) string {
	trimmed := make([]string, 0, len(txids))
	for _, id := range txids {
		if id = strings.TrimSpace(id); id != "" {
			trimmed = append(trimmed, id)
		}
	}
	return strings.Join(trimmed, ", ")
}
