// Package engine implements typed DAG construction and execution.
//
// Architecture:
//
// graph.go    - Adjacency structure, connection validation (type, duplicate, cycle), head discovery
// runner.go   - PipelineRunner: node registry, connection API, depth-first run with output collection
// registry.go - Node kind factories and aliases
// builder.go  - Declarative pipeline spec to runner
//
// A run starts at every head in registration order and propagates each node's
// result to its children in edge-creation order. A node with several parents is
// invoked once per inbound path; there is no join.
package engine
