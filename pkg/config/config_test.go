package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/polisai/polis-flow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const portfolioYAML = `
logging:
  level: DEBUG
  format: text
telemetry:
  service_name: portfolio-flow
  otlp_endpoint: "localhost:4317"
  insecure: true
  headers:
    authorization: Bearer local
  resource_attributes:
    team: markets
runner:
  parallel: 2
metrics:
  address: ":9100"
pipeline:
  id: portfolio
  nodes:
    - id: load
      kind: csv.table
      params:
        path: transactions.csv
        required_columns: [Ticker, Action, Quantity, Price]
    - id: tickers
      kind: tickers
      params: {unique: true}
    - id: holdings
      kind: holdings
    - id: report
      kind: report.holdings
    - id: out
      kind: print
      output: true
  edges:
    - from: load
      to: tickers
    - from: load
      to: holdings
    - from: holdings
      to: report
    - from: [report]
      to: out
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPortfolioConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, portfolioYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, TelemetryConfig{
		ServiceName:        "portfolio-flow",
		OTLPEndpoint:       "localhost:4317",
		Insecure:           true,
		Headers:            map[string]string{"authorization": "Bearer local"},
		ResourceAttributes: map[string]string{"team": "markets"},
	}, cfg.Telemetry)
	assert.Equal(t, 2, cfg.Runner.Parallel)
	assert.Equal(t, ":9100", cfg.Metrics.Address)

	spec := cfg.PipelineSpec()
	want := domain.PipelineSpec{
		ID: "portfolio",
		Nodes: []domain.NodeSpec{
			{ID: "load", Kind: "csv.table", Params: map[string]any{
				"path":             "transactions.csv",
				"required_columns": []any{"Ticker", "Action", "Quantity", "Price"},
			}},
			{ID: "tickers", Kind: "tickers", Params: map[string]any{"unique": true}},
			{ID: "holdings", Kind: "holdings"},
			{ID: "report", Kind: "report.holdings"},
			{ID: "out", Kind: "print", Output: true},
		},
		Edges: []domain.EdgeSpec{
			{From: []domain.NodeID{"load"}, To: "tickers"},
			{From: []domain.NodeID{"load"}, To: "holdings"},
			{From: []domain.NodeID{"holdings"}, To: "report"},
			{From: []domain.NodeID{"report"}, To: "out"},
		},
	}
	if diff := cmp.Diff(want, spec); diff != "" {
		t.Fatalf("pipeline spec mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "pipeline:\n  id: empty\n"))
	require.NoError(t, err)

	want := Default()
	want.Pipeline.ID = "empty"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FLOW_LOG_LEVEL", "warn")
	t.Setenv("FLOW_LOG_FORMAT", "json")
	t.Setenv("FLOW_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("FLOW_OTLP_INSECURE", "true")
	t.Setenv("FLOW_PARALLEL", "8")
	t.Setenv("FLOW_METRICS_ADDR", ":9999")
	t.Setenv("FLOW_OTLP_HEADERS", "x-tenant = acme, authorization=Bearer env")

	cfg, err := Load(writeConfig(t, portfolioYAML))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, 8, cfg.Runner.Parallel)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
	assert.Equal(t, map[string]string{"authorization": "Bearer env", "x-tenant": "acme"}, cfg.Telemetry.Headers)
}

func TestLoadRejectsMalformedHeaders(t *testing.T) {
	t.Setenv("FLOW_OTLP_HEADERS", "authorization")

	_, err := Load(writeConfig(t, portfolioYAML))
	require.ErrorIs(t, err, domain.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "FLOW_OTLP_HEADERS")
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("FLOW_PARALLEL", "many")

	_, err := Load(writeConfig(t, portfolioYAML))
	require.ErrorIs(t, err, domain.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "FLOW_PARALLEL")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "bad level", yaml: "logging: {level: loud}", wantErr: "invalid log level"},
		{name: "bad format", yaml: "logging: {format: xml}", wantErr: "invalid log format"},
		{name: "negative parallel", yaml: "runner: {parallel: -1}", wantErr: "parallel must not be negative"},
		{name: "node without id", yaml: "pipeline: {nodes: [{kind: print}]}", wantErr: "has no id"},
		{name: "node without kind", yaml: "pipeline: {nodes: [{id: a}]}", wantErr: "has no kind"},
		{name: "duplicate node", yaml: "pipeline: {nodes: [{id: a, kind: print}, {id: a, kind: print}]}", wantErr: "declared twice"},
		{name: "edge without source", yaml: "pipeline: {nodes: [{id: a, kind: print}], edges: [{to: a}]}", wantErr: "has no source"},
		{name: "edge to unknown", yaml: "pipeline: {nodes: [{id: a, kind: print}], edges: [{from: a, to: b}]}", wantErr: `undeclared node "b"`},
		{name: "edge from unknown", yaml: "pipeline: {nodes: [{id: a, kind: print}], edges: [{from: [a, c], to: a}]}", wantErr: `undeclared node "c"`},
		{name: "edge from mapping", yaml: "pipeline: {nodes: [{id: a, kind: print}], edges: [{from: {x: y}, to: a}]}", wantErr: "expected a string or a list"},
		{name: "not yaml", yaml: "pipeline: [", wantErr: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfigInvalid)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q does not mention %q", err, tt.wantErr)
		})
	}
}

func TestParseZeroParallelMeansSequential(t *testing.T) {
	cfg, err := Parse([]byte("runner: {parallel: 0}"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Runner.Parallel)
}

func TestPipelineSpecCarriesAllowCycles(t *testing.T) {
	cfg, err := Parse([]byte("runner: {allow_cycles: true}\npipeline: {id: loop}"))
	require.NoError(t, err)
	assert.True(t, cfg.PipelineSpec().AllowCycles)
}
