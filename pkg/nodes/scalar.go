package nodes

import (
	"context"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"github.com/shopspring/decimal"
)

// Const emits a fixed scalar.
type Const struct {
	runtime.Base
	value decimal.Decimal
}

func newConst(spec domain.NodeSpec) (runtime.Node, error) {
	value, err := paramsOf(spec).Decimal("value", decimal.Zero)
	if err != nil {
		return nil, err
	}
	return NewConst(spec.ID, value, spec.Output), nil
}

// NewConst creates a source that emits value on every run.
func NewConst(id domain.NodeID, value decimal.Decimal, isOutput bool) *Const {
	return &Const{
		Base:  runtime.NewBase(runtime.Spec{ID: id, Kind: KindConst, Output: domain.TypeScalar, IsOutput: isOutput}),
		value: value,
	}
}

func (n *Const) Process(context.Context, any) (any, error) {
	return n.value, nil
}

// Scale multiplies its input by a factor.
type Scale struct {
	runtime.Base
	factor decimal.Decimal
}

func newScale(spec domain.NodeSpec) (runtime.Node, error) {
	factor, err := paramsOf(spec).Decimal("factor", decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}
	return NewScale(spec.ID, factor, spec.Output), nil
}

// NewScale creates a scalar transform multiplying by factor.
func NewScale(id domain.NodeID, factor decimal.Decimal, isOutput bool) *Scale {
	return &Scale{
		Base:   runtime.NewBase(runtime.Spec{ID: id, Kind: KindScale, Input: domain.TypeScalar, Output: domain.TypeScalar, IsOutput: isOutput}),
		factor: factor,
	}
}

func (n *Scale) Process(_ context.Context, input any) (any, error) {
	value, err := inputAs[decimal.Decimal](n, input)
	if err != nil {
		return nil, err
	}
	return value.Mul(n.factor), nil
}
