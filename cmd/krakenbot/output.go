package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"krakenbot/internal/rest"
)

type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(c *cli.Context) *printer {
	return &printer{w: c.App.Writer, json: c.Bool(jsonFlag.Name)}
}

func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table prints rows under a header, or v as JSON when --json is set
func (p *printer) Table(v any, header []string, rows [][]string) error {
	if p.json {
		return p.JSON(v)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func balanceRows(balances rest.Balances) [][]string {
	assets := lo.Keys(balances)
	sort.Strings(assets)
	return lo.Map(assets, func(asset string, _ int) []string {
		return []string{asset, balances[asset].String()}
	})
}

func orderRows(orders rest.Orders) [][]string {
	txids := lo.Keys(orders)
	sort.Slice(txids, func(i, j int) bool {
		return orders[txids[i]].OpenTime < orders[txids[j]].OpenTime
	})
	return lo.Map(txids, func(txid string, _ int) []string {
		o := orders[txid]
		return []string{
			txid,
			o.Status,
			o.Descr.Pair,
			o.Descr.Type,
			o.Descr.OrderType,
			o.Volume.String(),
			o.VolumeExec.String(),
			o.Descr.Price,
			formatUnix(o.OpenTime),
		}
	})
}

var orderHeader = []string{"TXID", "STATUS", "PAIR", "SIDE", "TYPE", "VOLUME", "FILLED", "PRICE", "OPENED"}

func formatUnix(ts float64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}
