package nodes

import (
	"context"
	"strings"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// Tickers extracts the values of one column of a table.
type Tickers struct {
	runtime.Base
	column string
	unique bool
}

func newTickers(spec domain.NodeSpec) (runtime.Node, error) {
	p := paramsOf(spec)
	column, err := p.String("column", "Ticker")
	if err != nil {
		return nil, err
	}
	unique, err := p.Bool("unique", false)
	if err != nil {
		return nil, err
	}
	return NewTickers(spec.ID, column, unique, spec.Output), nil
}

// NewTickers creates a table to strings transform over column. With unique set,
// repeated values keep their first position only.
func NewTickers(id domain.NodeID, column string, unique, isOutput bool) *Tickers {
	return &Tickers{
		Base:   runtime.NewBase(runtime.Spec{ID: id, Kind: KindTickers, Input: domain.TypeTable, Output: domain.TypeStrings, IsOutput: isOutput}),
		column: column,
		unique: unique,
	}
}

func (n *Tickers) Process(_ context.Context, input any) (any, error) {
	table, err := inputAs[Table](n, input)
	if err != nil {
		return nil, err
	}
	values, err := table.Column(n.column)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if n.unique && seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}
