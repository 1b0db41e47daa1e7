package domain

// NodeID is the stable identity of a node. It is assigned once at construction
// and used as the key of every graph and runner structure.
type NodeID string

// TypeTag is the semantic type a node consumes or produces. Two nodes may be
// connected only when the producer's output tag equals the consumer's input tag.
type TypeTag string

const (
	// TypeNone marks the input of a source or the output of a pure sink.
	TypeNone TypeTag = "none"
	// TypeScalar is a single numeric value.
	TypeScalar TypeTag = "scalar"
	// TypeStrings is an ordered sequence of strings (e.g. ticker symbols).
	TypeStrings TypeTag = "strings"
	// TypeTable is a column-named tabular dataset.
	TypeTable TypeTag = "table"
	// TypeQuotes is a set of market prices keyed by ticker.
	TypeQuotes TypeTag = "quotes"
	// TypeHoldings is a per-ticker position summary.
	TypeHoldings TypeTag = "holdings"
	// TypeText is rendered, human-readable text.
	TypeText TypeTag = "text"
)

var knownTypeTags = map[TypeTag]struct{}{
	TypeNone:     {},
	TypeScalar:   {},
	TypeStrings:  {},
	TypeTable:    {},
	TypeQuotes:   {},
	TypeHoldings: {},
	TypeText:     {},
}

// Valid reports whether the tag belongs to the supported set.
func (t TypeTag) Valid() bool {
	_, ok := knownTypeTags[t]
	return ok
}

func (t TypeTag) String() string {
	return string(t)
}
