package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrTypeMismatch  = errors.New("type mismatch")
	ErrDuplicateEdge = errors.New("duplicate edge")
	ErrCycle         = errors.New("cycle detected")
	ErrDuplicateNode = errors.New("duplicate node")
	ErrProcessing    = errors.New("node processing failed")
	ErrUnknownNode   = errors.New("unknown node")
	ErrUnknownKind   = errors.New("unknown node kind")
	ErrConfigInvalid = errors.New("invalid configuration")
)

// TypeMismatchError reports a connection whose producer and consumer declare
// different semantic types.
type TypeMismatchError struct {
	Source      NodeID
	Destination NodeID
	Output      TypeTag
	Input       TypeTag
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s outputs %q but %s expects %q",
		ErrTypeMismatch, e.Source, e.Output, e.Destination, e.Input)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// DuplicateEdgeError reports an attempt to add an edge that already exists.
type DuplicateEdgeError struct {
	Source      NodeID
	Destination NodeID
}

func (e *DuplicateEdgeError) Error() string {
	return fmt.Sprintf("%s: %s -> %s already exists", ErrDuplicateEdge, e.Source, e.Destination)
}

func (e *DuplicateEdgeError) Unwrap() error { return ErrDuplicateEdge }

// CycleError reports an edge that would close a directed cycle.
type CycleError struct {
	Source      NodeID
	Destination NodeID
}

func (e *CycleError) Error() string {
	if e.Source == e.Destination {
		return fmt.Sprintf("%s: self-loop on %s", ErrCycle, e.Source)
	}
	return fmt.Sprintf("%s: %s -> %s would close a cycle (%s already reaches %s)",
		ErrCycle, e.Source, e.Destination, e.Destination, e.Source)
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// DuplicateNodeError reports a second registration of the same identity.
type DuplicateNodeError struct {
	Node NodeID
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("%s: %s is already registered", ErrDuplicateNode, e.Node)
}

func (e *DuplicateNodeError) Unwrap() error { return ErrDuplicateNode }

// ProcessingError wraps a failure raised by a node while processing its input.
// It matches ErrProcessing with errors.Is and unwraps to the underlying cause.
type ProcessingError struct {
	Node NodeID
	Kind string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: node %s (%s): %v", ErrProcessing, e.Node, e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Is reports whether target is ErrProcessing.
func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessing
}
