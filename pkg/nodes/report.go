package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/polisai/polis-flow/internal/format"
	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// reportOptions are the params shared by report kinds.
type reportOptions struct {
	currency string
	mode     format.Mode
}

func parseReportOptions(spec domain.NodeSpec) (reportOptions, error) {
	p := paramsOf(spec)
	currency, err := p.String("currency", "USD")
	if err != nil {
		return reportOptions{}, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !format.KnownCurrency(currency) {
		return reportOptions{}, p.errorf("currency", "unknown ISO 4217 code %q", currency)
	}
	raw, err := p.String("format", "ascii")
	if err != nil {
		return reportOptions{}, err
	}
	mode, err := format.ParseMode(raw)
	if err != nil {
		return reportOptions{}, p.errorf("format", "%v", err)
	}
	return reportOptions{currency: currency, mode: mode}, nil
}

// HoldingsReport renders open positions as a table.
type HoldingsReport struct {
	runtime.Base
	opts reportOptions
}

func newHoldingsReport(spec domain.NodeSpec) (runtime.Node, error) {
	opts, err := parseReportOptions(spec)
	if err != nil {
		return nil, err
	}
	return &HoldingsReport{
		Base: runtime.NewBase(runtime.Spec{ID: spec.ID, Kind: KindReportHoldings, Input: domain.TypeHoldings, Output: domain.TypeText, IsOutput: spec.Output}),
		opts: opts,
	}, nil
}

func (n *HoldingsReport) Process(_ context.Context, input any) (any, error) {
	holdings, err := inputAs[Holdings](n, input)
	if err != nil {
		return nil, err
	}

	tbl := format.NewTable(n.opts.mode)
	tbl.Header("Ticker", "Quantity", "Avg Cost", "Cost Basis")
	for _, h := range holdings {
		tbl.Row(h.Ticker, h.Quantity.String(),
			format.Money(h.AverageCost(), n.opts.currency),
			format.Money(h.Cost, n.opts.currency))
	}
	tbl.Footer("Total", "", "", format.Money(holdings.TotalCost(), n.opts.currency))
	tbl.AlignRight(2, 3, 4)
	return tbl.String(), nil
}

// QuotesReport renders prices as a table.
type QuotesReport struct {
	runtime.Base
	opts reportOptions
}

func newQuotesReport(spec domain.NodeSpec) (runtime.Node, error) {
	opts, err := parseReportOptions(spec)
	if err != nil {
		return nil, err
	}
	return &QuotesReport{
		Base: runtime.NewBase(runtime.Spec{ID: spec.ID, Kind: KindReportQuotes, Input: domain.TypeQuotes, Output: domain.TypeText, IsOutput: spec.Output}),
		opts: opts,
	}, nil
}

func (n *QuotesReport) Process(_ context.Context, input any) (any, error) {
	quotes, err := inputAs[Quotes](n, input)
	if err != nil {
		return nil, err
	}

	tbl := format.NewTable(n.opts.mode)
	tbl.Header("Ticker", "Price")
	for _, q := range quotes {
		tbl.Row(q.Ticker, format.Money(q.Price, n.opts.currency))
	}
	tbl.Footer("", fmt.Sprintf("%d quotes", len(quotes)))
	tbl.AlignRight(2)
	return tbl.String(), nil
}
