package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"krakenbot/internal/filters"
	"krakenbot/internal/rest"
)

var (
	balanceCommand = &cli.Command{
		Action: balance,
		Name:   "balance",
		Usage:  "Show non-zero account balances",
	}
	ordersCommand = &cli.Command{
		Name:  "orders",
		Usage: "Inspect orders",
		Subcommands: []*cli.Command{
			{
				Action: openOrders,
				Name:   "open",
				Usage:  "List open orders",
			},
			{
				Action: closedOrders,
				Name:   "closed",
				Usage:  "List closed orders",
				Flags: []cli.Flag{
					userRefFlag,
				},
			},
			{
				Action:    queryOrders,
				Name:      "query",
				Usage:     "Show orders by transaction id",
				ArgsUsage: "TXID [TXID...]",
				Flags: []cli.Flag{
					openOnlyFlag,
				},
			},
		},
	}
	cancelCommand = &cli.Command{
		Action:    cancelOrder,
		Name:      "cancel",
		Usage:     "Cancel an open order",
		ArgsUsage: "TXID",
	}
	addOrderCommand = &cli.Command{
		Action: addOrder,
		Name:   "add-order",
		Usage:  "Place an order",
		Flags: []cli.Flag{
			pairFlag,
			sideFlag,
			orderTypeFlag,
			volumeFlag,
			priceFlag,
			validateFlag,
			roundFlag,
		},
	}
)

func balance(c *cli.Context) error {
	rt, err := loadRuntime(c, loadOptions{private: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	balances, err := rt.client.Balance(c.Context)
	if err != nil {
		return err
	}
	balances = balances.NonZero()
	return newPrinter(c).Table(balances, []string{"ASSET", "BALANCE"}, balanceRows(balances))
}

func openOrders(c *cli.Context) error {
	rt, err := loadRuntime(c, loadOptions{private: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	orders, err := rt.client.OpenOrders(c.Context)
	if err != nil {
		return err
	}
	return printOrders(c, orders)
}

func closedOrders(c *cli.Context) error {
	rt, err := loadRuntime(c, loadOptions{private: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	orders, err := rt.client.ClosedOrders(c.Context, c.Int64(userRefFlag.Name))
	if err != nil {
		return err
	}
	return printOrders(c, orders)
}

func queryOrders(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one transaction id is required")
	}

	rt, err := loadRuntime(c, loadOptions{private: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	orders, err := rt.client.QueryOrders(c.Context, c.Args().Slice())
	if err != nil {
		return err
	}
	if c.Bool(openOnlyFlag.Name) {
		orders = lo.PickBy(orders, func(_ string, o rest.OrderInfo) bool { return o.IsOpen() })
	}
	return printOrders(c, orders)
}

func printOrders(c *cli.Context, orders rest.Orders) error {
	if orders == nil {
		orders = rest.Orders{}
	}
	return newPrinter(c).Table(orders, orderHeader, orderRows(orders))
}

func cancelOrder(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one transaction id is required")
	}
	txid := c.Args().First()

	rt, err := loadRuntime(c, loadOptions{private: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	canceled, err := rt.client.CancelOrder(c.Context, txid)
	if err != nil {
		return err
	}

	p := newPrinter(c)
	if p.json {
		return p.JSON(map[string]any{"txid": txid, "canceled": canceled})
	}
	if !canceled {
		_, err = fmt.Fprintf(p.w, "nothing canceled for %s\n", txid)
		return err
	}
	_, err = fmt.Fprintf(p.w, "canceled %s\n", txid)
	return err
}

func addOrder(c *cli.Context) error {
	req, err := orderRequest(c)
	if err != nil {
		return err
	}

	rt, err := loadRuntime(c, loadOptions{private: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	catalog, err := rt.client.Catalog(c.Context)
	if err != nil {
		return err
	}
	pair, err := catalog.PairByName(req.Pair)
	if err != nil {
		return err
	}
	req.Pair = pair.Name

	validator := filters.NewValidator(catalog.Pairs(), rt.logger)
	if c.Bool(roundFlag.Name) {
		req.Price = validator.RoundPrice(pair.Name, req.Price)
		req.Volume = validator.RoundVolume(pair.Name, req.Volume)
		if err := req.Check(); err != nil {
			return err
		}
	}
	if err := validator.Validate(filters.OrderFromRequest(req)); err != nil {
		return err
	}

	result, err := rt.client.AddOrder(c.Context, req)
	if err != nil {
		return err
	}

	p := newPrinter(c)
	if p.json {
		return p.JSON(result)
	}
	if _, err := fmt.Fprintln(p.w, result.Descr.Order); err != nil {
		return err
	}
	if req.Validate {
		_, err = fmt.Fprintln(p.w, "validated only, nothing was submitted")
		return err
	}
	_, err = fmt.Fprintf(p.w, "txid: %s\n", rest.JoinTxIDs(result.TxIDs))
	return err
}

// orderRequest parses and checks the flags before any credentials are read
func orderRequest(c *cli.Context) (*rest.AddOrderRequest, error) {
	side, err := rest.ParseSide(c.String(sideFlag.Name))
	if err != nil {
		return nil, err
	}
	orderType, err := rest.ParseOrderType(c.String(orderTypeFlag.Name))
	if err != nil {
		return nil, err
	}
	volume, err := decimal.NewFromString(c.String(volumeFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid volume %q", c.String(volumeFlag.Name))
	}

	var price decimal.Decimal
	if raw := c.String(priceFlag.Name); raw != "" {
		if price, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("invalid price %q", raw)
		}
	}

	req := &rest.AddOrderRequest{
		Pair:      c.String(pairFlag.Name),
		Side:      side,
		OrderType: orderType,
		Volume:    volume,
		Price:     price,
		Validate:  c.Bool(validateFlag.Name),
	}
	if err := req.Check(); err != nil {
		return nil, err
	}
	return req, nil
}
