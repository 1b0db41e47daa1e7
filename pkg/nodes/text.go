package nodes

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// Join concatenates a list of strings into text.
type Join struct {
	runtime.Base
	separator string
}

func newJoin(spec domain.NodeSpec) (runtime.Node, error) {
	sep, err := paramsOf(spec).String("separator", ", ")
	if err != nil {
		return nil, err
	}
	return &Join{
		Base:      runtime.NewBase(runtime.Spec{ID: spec.ID, Kind: KindJoin, Input: domain.TypeStrings, Output: domain.TypeText, IsOutput: spec.Output}),
		separator: sep,
	}, nil
}

func (n *Join) Process(_ context.Context, input any) (any, error) {
	values, err := inputAs[[]string](n, input)
	if err != nil {
		return nil, err
	}
	return strings.Join(values, n.separator), nil
}

// Print writes text to a writer. It returns the text it printed so an output
// flag on the sink collects what was shown.
type Print struct {
	runtime.Base
	out io.Writer
}

func printFactory(out io.Writer) engine.Factory {
	return func(spec domain.NodeSpec) (runtime.Node, error) {
		return NewPrint(spec.ID, out, spec.Output), nil
	}
}

// NewPrint creates a text sink writing to out.
func NewPrint(id domain.NodeID, out io.Writer, isOutput bool) *Print {
	return &Print{
		Base: runtime.NewBase(runtime.Spec{ID: id, Kind: KindPrint, Input: domain.TypeText, Output: domain.TypeNone, IsOutput: isOutput}),
		out:  out,
	}
}

func (n *Print) Process(_ context.Context, input any) (any, error) {
	text, err := inputAs[string](n, input)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := fmt.Fprint(n.out, text); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	return strings.TrimSuffix(text, "\n"), nil
}
