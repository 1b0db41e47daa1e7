package nodes

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transactions(rows ...string) Table {
	table := Table{Source: "tx.csv", Columns: []string{"Ticker", "Action", "Quantity", "Price"}}
	for _, row := range rows {
		table.Rows = append(table.Rows, strings.Split(row, ","))
	}
	return table
}

func TestHoldingsAverageCost(t *testing.T) {
	table := transactions(
		"AAPL,BUY,10,100",
		"MSFT,buy,5,300.50",
		"AAPL,BUY,10,200",
		"AAPL,SELL,5,250",
	)

	out, err := NewHoldings("cost", false, false).Process(context.Background(), table)
	require.NoError(t, err)

	holdings := out.(Holdings)
	require.Len(t, holdings, 2)

	assert.Equal(t, "AAPL", holdings[0].Ticker)
	assert.Equal(t, "15", holdings[0].Quantity.String())
	assert.Equal(t, "2250", holdings[0].Cost.String())
	assert.Equal(t, "150", holdings[0].AverageCost().String())

	assert.Equal(t, "MSFT", holdings[1].Ticker)
	assert.Equal(t, "1502.5", holdings[1].Cost.String())
	assert.Equal(t, "3752.5", holdings.TotalCost().String())
}

func TestHoldingsClosedPositions(t *testing.T) {
	table := transactions(
		"GOOG,BUY,2,100",
		"GOOG,SELL,2,120",
		"AAPL,BUY,1,50",
	)

	out, err := NewHoldings("cost", false, false).Process(context.Background(), table)
	require.NoError(t, err)
	assert.Len(t, out.(Holdings), 1)

	out, err = NewHoldings("cost", true, false).Process(context.Background(), table)
	require.NoError(t, err)
	holdings := out.(Holdings)
	require.Len(t, holdings, 2)
	assert.True(t, holdings[0].Quantity.IsZero())
	assert.True(t, holdings[0].Cost.IsZero())
}

func TestHoldingsErrors(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr string
	}{
		{
			name:    "oversell",
			table:   transactions("AAPL,BUY,1,10", "AAPL,SELL,2,10"),
			wantErr: "line 3: selling 2 AAPL exceeds open quantity 1",
		},
		{
			name:    "unknown action",
			table:   transactions("AAPL,HOLD,1,10"),
			wantErr: `line 2: unknown action "HOLD"`,
		},
		{
			name:    "bad quantity",
			table:   transactions("AAPL,BUY,ten,10"),
			wantErr: `quantity "ten"`,
		},
		{
			name:    "negative quantity",
			table:   transactions("AAPL,BUY,-1,10"),
			wantErr: "quantity must be positive",
		},
		{
			name:    "bad price",
			table:   transactions("AAPL,BUY,1,free"),
			wantErr: `price "free"`,
		},
		{
			name:    "empty ticker",
			table:   transactions(" ,BUY,1,1"),
			wantErr: "empty ticker",
		},
		{
			name:    "missing columns",
			table:   Table{Source: "tx.csv", Columns: []string{"Ticker", "Quantity"}},
			wantErr: "columns not found in tx.csv: [Action Price]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHoldings("cost", false, false).Process(context.Background(), tt.table)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHoldingsRejectsWrongInput(t *testing.T) {
	_, err := NewHoldings("cost", false, false).Process(context.Background(), []string{"AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected nodes.Table")
}
