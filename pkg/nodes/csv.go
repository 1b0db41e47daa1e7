package nodes

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
)

// CSVTable reads a CSV file with a header row into a Table.
type CSVTable struct {
	runtime.Base
	path      string
	required  []string
	delimiter rune
}

func newCSVTable(spec domain.NodeSpec) (runtime.Node, error) {
	p := paramsOf(spec)
	path, err := p.RequiredString("path")
	if err != nil {
		return nil, err
	}
	required, err := p.Strings("required_columns")
	if err != nil {
		return nil, err
	}
	delim, err := p.String("delimiter", ",")
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(delim) != 1 {
		return nil, p.errorf("delimiter", "expected a single character, got %q", delim)
	}

	node := NewCSVTable(spec.ID, path, required, spec.Output)
	node.delimiter, _ = utf8.DecodeRuneInString(delim)
	return node, nil
}

// NewCSVTable creates a source reading path. Every name in required must appear
// in the header.
func NewCSVTable(id domain.NodeID, path string, required []string, isOutput bool) *CSVTable {
	return &CSVTable{
		Base:      runtime.NewBase(runtime.Spec{ID: id, Kind: KindCSVTable, Output: domain.TypeTable, IsOutput: isOutput}),
		path:      path,
		required:  required,
		delimiter: ',',
	}
}

func (n *CSVTable) Process(ctx context.Context, _ any) (any, error) {
	//nolint:gosec // Path comes from the pipeline declaration
	f, err := os.Open(n.path)
	if err != nil {
		return nil, fmt.Errorf("open portfolio: %w", err)
	}
	defer f.Close()

	return readTable(ctx, f, n.path, n.delimiter, n.required)
}

func readTable(ctx context.Context, r io.Reader, source string, delimiter rune, required []string) (Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("%s: empty file", source)
	}
	if err != nil {
		return Table{}, fmt.Errorf("%s: read header: %w", source, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	table := Table{Source: source, Columns: header}
	if missing := table.Missing(required); len(missing) > 0 {
		return Table{}, fmt.Errorf("columns not found in portfolio %s: %v", source, missing)
	}

	for {
		if err := ctx.Err(); err != nil {
			return Table{}, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%s: %w", source, err)
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}
