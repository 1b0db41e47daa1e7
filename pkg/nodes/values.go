package nodes

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Value representations carried between the built-in nodes, per type tag:
//
//	scalar   decimal.Decimal
//	strings  []string
//	table    Table
//	quotes   Quotes
//	holdings Holdings
//	text     string

// Table is a column-named dataset, typically read from CSV.
type Table struct {
	Source  string
	Columns []string
	Rows    [][]string
}

// Index returns the position of column, or -1.
func (t Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column in row order.
func (t Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in %s (have %v)", name, t.source(), t.Columns)
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Missing returns the required columns absent from the table, in the order given.
func (t Table) Missing(required []string) []string {
	var missing []string
	for _, col := range required {
		if t.Index(col) < 0 {
			missing = append(missing, col)
		}
	}
	return missing
}

func (t Table) source() string {
	if t.Source == "" {
		return "table"
	}
	return t.Source
}

// Quote is the latest known price of a ticker.
type Quote struct {
	Ticker string
	Price  decimal.Decimal
}

// Quotes lists prices in the order tickers were first requested.
type Quotes []Quote

// Price looks up the quote for ticker.
func (q Quotes) Price(ticker string) (decimal.Decimal, bool) {
	for _, quote := range q {
		if quote.Ticker == ticker {
			return quote.Price, true
		}
	}
	return decimal.Zero, false
}

// Holding is the open position in a ticker.
type Holding struct {
	Ticker   string
	Quantity decimal.Decimal
	Cost     decimal.Decimal // total cost of the open quantity
}

// AverageCost is the cost basis per unit.
func (h Holding) AverageCost() decimal.Decimal {
	if h.Quantity.IsZero() {
		return decimal.Zero
	}
	return h.Cost.Div(h.Quantity)
}

// Holdings lists open positions in the order tickers first appear.
type Holdings []Holding

// TotalCost sums the cost basis of every position.
func (h Holdings) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, holding := range h {
		total = total.Add(holding.Cost)
	}
	return total
}
