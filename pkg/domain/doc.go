// Package domain defines the core types and errors of the dataflow engine.
//
// This package contains pure domain logic with ZERO external dependencies outside the
// Go standard library. It describes:
//
// - Semantic type tags checked when nodes are connected
// - Node identities used as map keys by the graph and the runner
// - Declarative pipeline specifications loaded from configuration
// - The error taxonomy surfaced by pipeline assembly and execution
//
// The engine, config and node packages depend on these types. The dependency
// direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
