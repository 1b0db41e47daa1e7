// Package runtime defines the core contracts shared by the pipeline runner and node
// implementations, keeping business logic decoupled from execution mechanics.
package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/polisai/polis-flow/pkg/domain"
)

// Node is a typed unit of computation in a pipeline graph.
//
// Process must return a value of OutputType or fail. Sources receive a nil input;
// pure sinks return nil. Implementations may perform I/O and own their own
// timeout and retry policy.
type Node interface {
	ID() domain.NodeID
	Kind() string
	InputType() domain.TypeTag
	OutputType() domain.TypeTag
	IsOutput() bool
	Process(ctx context.Context, input any) (any, error)
}

// Spec holds the immutable attributes of a node.
type Spec struct {
	ID       domain.NodeID // generated when empty
	Kind     string
	Input    domain.TypeTag
	Output   domain.TypeTag
	IsOutput bool
}

// Base implements the attribute half of Node. Concrete nodes embed it and add
// Process.
type Base struct {
	id       domain.NodeID
	kind     string
	input    domain.TypeTag
	output   domain.TypeTag
	isOutput bool
}

// NewBase freezes the attributes of spec. Empty type tags default to TypeNone and
// an empty ID is replaced by "<kind>-<uuid>".
func NewBase(spec Spec) Base {
	kind := strings.TrimSpace(spec.Kind)
	if kind == "" {
		kind = "node"
	}
	input := spec.Input
	if input == "" {
		input = domain.TypeNone
	}
	output := spec.Output
	if output == "" {
		output = domain.TypeNone
	}
	id := spec.ID
	if id == "" {
		id = NewID(kind)
	}
	return Base{
		id:       id,
		kind:     kind,
		input:    input,
		output:   output,
		isOutput: spec.IsOutput,
	}
}

// NewID returns a globally unique identity for a node of the given kind.
func NewID(kind string) domain.NodeID {
	return domain.NodeID(fmt.Sprintf("%s-%s", kind, uuid.New().String()))
}

// ID returns the node identity.
func (b Base) ID() domain.NodeID { return b.id }

// Kind returns the node kind, e.g. "csv.table".
func (b Base) Kind() string { return b.kind }

// InputType returns the declared input tag.
func (b Base) InputType() domain.TypeTag { return b.input }

// OutputType returns the declared output tag.
func (b Base) OutputType() domain.TypeTag { return b.output }

// IsOutput reports whether results of this node are collected by a run.
func (b Base) IsOutput() bool { return b.isOutput }

func (b Base) String() string {
	return fmt.Sprintf("%s(%s) -> %s", b.id, b.input, b.output)
}

// ProcessFunc is the signature of a node's transformation.
type ProcessFunc func(ctx context.Context, input any) (any, error)

// FuncNode adapts a ProcessFunc to the Node contract.
type FuncNode struct {
	Base
	fn ProcessFunc
}

// NewFunc constructs a node that delegates Process to fn.
func NewFunc(spec Spec, fn ProcessFunc) *FuncNode {
	return &FuncNode{Base: NewBase(spec), fn: fn}
}

// Process invokes the wrapped function.
func (n *FuncNode) Process(ctx context.Context, input any) (any, error) {
	if n.fn == nil {
		return nil, nil
	}
	return n.fn(ctx, input)
}
