package domain

// PipelineSpec is the declarative description of a pipeline: which nodes exist
// and how they are connected. It is produced by the config layer and turned into
// a runnable pipeline by the engine builder.
type PipelineSpec struct {
	ID          string
	AllowCycles bool
	Nodes       []NodeSpec
	Edges       []EdgeSpec
}

// NodeSpec declares a single node instance.
type NodeSpec struct {
	ID     NodeID
	Kind   string         // csv.table, tickers, quotes.http, print, etc.
	Output bool           // collect this node's results in the run outputs
	Params map[string]any // Kind-specific configuration
}

// EdgeSpec declares one or more connections into the same destination.
// Multiple sources are connected in the listed order.
type EdgeSpec struct {
	From []NodeID
	To   NodeID
}
