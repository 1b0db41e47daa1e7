// Package nodes provides the built-in node kinds: scalar arithmetic, CSV
// ingestion, ticker extraction, HTTP quote fetching, holdings aggregation,
// report rendering and text sinks.
package nodes

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/polisai/polis-flow/internal/governance"
	"github.com/polisai/polis-flow/pkg/engine"
	"github.com/polisai/polis-flow/pkg/engine/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options carries the dependencies shared by the built-in kinds.
type Options struct {
	// Output receives everything written by print nodes. Defaults to stdout.
	Output io.Writer
	// HTTPClient is used by quotes.http. Defaults to an otelhttp-instrumented client.
	HTTPClient *http.Client
	// Retry is the default policy of quotes.http; node params override fields.
	Retry  governance.RetryConfig
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Output == nil {
		o.Output = os.Stdout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if o.Retry.MaxRetries == 0 && o.Retry.InitialBackoff == 0 {
		o.Retry = governance.DefaultRetryConfig()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Register installs every built-in kind into reg.
func Register(reg *engine.KindRegistry, opts Options) {
	opts = opts.withDefaults()
	out := &syncWriter{w: opts.Output}

	reg.Register(KindConst, newConst, "constant")
	reg.Register(KindScale, newScale, "multiply")
	reg.Register(KindCSVTable, newCSVTable, "csv", "csv_portfolio")
	reg.Register(KindTickers, newTickers, "get_tickers")
	reg.Register(KindQuotesHTTP, quotesFactory(opts), "quotes")
	reg.Register(KindHoldings, newHoldings, "cost_basis")
	reg.Register(KindReportHoldings, newHoldingsReport)
	reg.Register(KindReportQuotes, newQuotesReport)
	reg.Register(KindJoin, newJoin)
	reg.Register(KindPrint, printFactory(out), "stdout")
}

// NewRegistry returns a registry holding every built-in kind.
func NewRegistry(opts Options) *engine.KindRegistry {
	reg := engine.NewKindRegistry()
	Register(reg, opts)
	return reg
}

// Built-in kind names.
const (
	KindConst          = "const"
	KindScale          = "scale"
	KindCSVTable       = "csv.table"
	KindTickers        = "tickers"
	KindQuotesHTTP     = "quotes.http"
	KindHoldings       = "holdings"
	KindReportHoldings = "report.holdings"
	KindReportQuotes   = "report.quotes"
	KindJoin           = "join"
	KindPrint          = "print"
)

// inputAs asserts the runtime representation of a node's input.
func inputAs[T any](node runtime.Node, input any) (T, error) {
	v, ok := input.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s input: expected %T, got %T", node.InputType(), zero, input)
	}
	return v, nil
}

// syncWriter serializes writes from print nodes that may run concurrently.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
