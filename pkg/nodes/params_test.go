package nodes

import (
	"testing"
	"time"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specWith(params map[string]any) domain.NodeSpec {
	return kindSpec("test", params)
}

func kindSpec(kind string, params map[string]any) domain.NodeSpec {
	return domain.NodeSpec{ID: "n", Kind: kind, Params: params}
}

func TestParamsDefaults(t *testing.T) {
	p := paramsOf(specWith(nil))

	s, err := p.String("missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", s)

	b, err := p.Bool("missing", true)
	require.NoError(t, err)
	assert.True(t, b)

	n, err := p.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	d, err := p.Duration("missing", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	list, err := p.Strings("missing")
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestParamsConversions(t *testing.T) {
	p := paramsOf(specWith(map[string]any{
		"flag":     "true",
		"count":    float64(3),
		"seconds":  2,
		"timeout":  "750ms",
		"price":    "189.25",
		"factor":   1.5,
		"columns":  []any{"Ticker", "Price"},
		"csv_list": "Ticker, Action ,",
	}))

	flag, err := p.Bool("flag", false)
	require.NoError(t, err)
	assert.True(t, flag)

	count, err := p.Int("count", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	seconds, err := p.Duration("seconds", 0)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, seconds)

	timeout, err := p.Duration("timeout", 0)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, timeout)

	price, err := p.Decimal("price", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "189.25", price.String())

	factor, err := p.Decimal("factor", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "1.5", factor.String())

	columns, err := p.Strings("columns")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ticker", "Price"}, columns)

	split, err := p.Strings("csv_list")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ticker", "Action"}, split)
}

func TestParamsErrors(t *testing.T) {
	p := paramsOf(specWith(map[string]any{
		"name":    42,
		"blank":   "  ",
		"flag":    "maybe",
		"count":   2.5,
		"timeout": "soon",
		"price":   "abc",
		"columns": []any{"ok", 3},
	}))

	_, err := p.String("name", "")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
	assert.Contains(t, err.Error(), `param "name"`)

	_, err = p.RequiredString("blank")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
	_, err = p.RequiredString("absent")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)

	_, err = p.Bool("flag", false)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)

	_, err = p.Int("count", 0)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)

	_, err = p.Duration("timeout", 0)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)

	_, err = p.Decimal("price", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)

	_, err = p.Strings("columns")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "item 1")
}
