package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/shopspring/decimal"
)

// Transaction columns read by the holdings node.
const (
	ColumnTicker   = "Ticker"
	ColumnAction   = "Action"
	ColumnQuantity = "Quantity"
	ColumnPrice    = "Price"
)

// HoldingsNode aggregates buy and sell transactions into open positions using
// average-cost accounting.
type HoldingsNode struct {
	runtime.Base
	keepClosed bool
}

func newHoldings(spec domain.NodeSpec) (runtime.Node, error) {
	keepClosed, err := paramsOf(spec).Bool("keep_closed", false)
	if err != nil {
		return nil, err
	}
	return NewHoldings(spec.ID, keepClosed, spec.Output), nil
}

// NewHoldings creates a table to holdings transform. Positions sold down to zero
// are dropped unless keepClosed is set.
func NewHoldings(id domain.NodeID, keepClosed, isOutput bool) *HoldingsNode {
	return &HoldingsNode{
		Base:       runtime.NewBase(runtime.Spec{ID: id, Kind: KindHoldings, Input: domain.TypeTable, Output: domain.TypeHoldings, IsOutput: isOutput}),
		keepClosed: keepClosed,
	}
}

func (n *HoldingsNode) Process(_ context.Context, input any) (any, error) {
	table, err := inputAs[Table](n, input)
	if err != nil {
		return nil, err
	}
	if missing := table.Missing([]string{ColumnTicker, ColumnAction, ColumnQuantity, ColumnPrice}); len(missing) > 0 {
		return nil, fmt.Errorf("columns not found in %s: %v", table.source(), missing)
	}
	return aggregate(table, n.keepClosed)
}

func aggregate(table Table, keepClosed bool) (Holdings, error) {
	var (
		tickerIdx = table.Index(ColumnTicker)
		actionIdx = table.Index(ColumnAction)
		qtyIdx    = table.Index(ColumnQuantity)
		priceIdx  = table.Index(ColumnPrice)
	)

	positions := make(map[string]*Holding)
	var order []string

	for i, row := range table.Rows {
		line := i + 2 // 1-based, after the header
		ticker := strings.TrimSpace(row[tickerIdx])
		if ticker == "" {
			return nil, fmt.Errorf("%s line %d: empty ticker", table.source(), line)
		}
		qty, err := decimal.NewFromString(strings.TrimSpace(row[qtyIdx]))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: quantity %q: not a number", table.source(), line, row[qtyIdx])
		}
		if !qty.IsPositive() {
			return nil, fmt.Errorf("%s line %d: quantity must be positive, got %s", table.source(), line, qty)
		}

		pos, ok := positions[ticker]
		if !ok {
			pos = &Holding{Ticker: ticker}
			positions[ticker] = pos
			order = append(order, ticker)
		}

		switch action := strings.ToUpper(strings.TrimSpace(row[actionIdx])); action {
		case "BUY":
			price, err := decimal.NewFromString(strings.TrimSpace(row[priceIdx]))
			if err != nil {
				return nil, fmt.Errorf("%s line %d: price %q: not a number", table.source(), line, row[priceIdx])
			}
			pos.Quantity = pos.Quantity.Add(qty)
			pos.Cost = pos.Cost.Add(qty.Mul(price))
		case "SELL":
			if qty.GreaterThan(pos.Quantity) {
				return nil, fmt.Errorf("%s line %d: selling %s %s exceeds open quantity %s",
					table.source(), line, qty, ticker, pos.Quantity)
			}
			// Selling at average cost leaves the per-unit basis unchanged.
			if qty.Equal(pos.Quantity) {
				pos.Cost = decimal.Zero
			} else {
				pos.Cost = pos.Cost.Sub(pos.AverageCost().Mul(qty))
			}
			pos.Quantity = pos.Quantity.Sub(qty)
		default:
			return nil, fmt.Errorf("%s line %d: unknown action %q (want BUY or SELL)", table.source(), line, row[actionIdx])
		}
	}

	holdings := make(Holdings, 0, len(order))
	for _, ticker := range order {
		pos := positions[ticker]
		if pos.Quantity.IsZero() && !keepClosed {
			continue
		}
		holdings = append(holdings, *pos)
	}
	return holdings, nil
}
