package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/polisai/polis-flow/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scalarPipeline = `
logging:
  level: error
pipeline:
  id: scalars
  nodes:
    - id: five
      kind: const
      params: {value: 5}
    - id: double
      kind: scale
      output: true
      params: {factor: 2}
  edges:
    - from: five
      to: double
`

func writePipeline(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// lockedBuffer is a bytes.Buffer safe for the watch goroutine and the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunPrintsOutputs(t *testing.T) {
	path := writePipeline(t, scalarPipeline)

	out, err := execute(t, "run", path, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| double")
	assert.Contains(t, out, "10")
}

func TestRunJSON(t *testing.T) {
	path := writePipeline(t, scalarPipeline)

	out, err := execute(t, "run", path, "-f", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"double": ["10"]}`, out)
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	path := writePipeline(t, scalarPipeline)

	_, err := execute(t, "run", path, "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRunReportsBuildErrors(t *testing.T) {
	path := writePipeline(t, `
pipeline:
  nodes:
    - {id: five, kind: const}
    - {id: words, kind: join}
  edges:
    - {from: five, to: words}
`)

	_, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type mismatch")
}

func TestValidate(t *testing.T) {
	path := writePipeline(t, scalarPipeline)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "pipeline scalars is valid: 2 nodes, 1 edges, 1 heads\n", out)
}

func TestValidateMissingFile(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestGraphFormats(t *testing.T) {
	path := writePipeline(t, scalarPipeline)

	dot, err := execute(t, "graph", path)
	require.NoError(t, err)
	assert.Contains(t, dot, `digraph "scalars" {`)
	assert.Contains(t, dot, `"five" -> "double";`)

	table, err := execute(t, "graph", path, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, table, "| five")

	_, err = execute(t, "graph", path, "--format", "svg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown graph format")
}

func TestWatchRunsAndStopsOnCancel(t *testing.T) {
	path := writePipeline(t, scalarPipeline)

	var out lockedBuffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&lockedBuffer{})
	cmd.SetArgs([]string{"watch", path, "--metrics-addr", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "10")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestTelemetryConfigCarriesPipelineAndHeaders(t *testing.T) {
	path := writePipeline(t, scalarPipeline+`
telemetry:
  otlp_endpoint: collector:4317
  headers: {authorization: Bearer t}
  resource_attributes: {team: markets}
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	got := telemetryConfig(cfg)
	assert.Equal(t, "scalars", got.PipelineID)
	assert.Equal(t, "collector:4317", got.Endpoint)
	assert.Equal(t, map[string]string{"authorization": "Bearer t"}, got.Headers)
	assert.Equal(t, map[string]string{"team": "markets"}, got.ResourceTags)
}

func TestOpenWatchReadsFileOnce(t *testing.T) {
	path := writePipeline(t, scalarPipeline)

	cmd, _, err := newRootCmd().Find([]string{"watch"})
	require.NoError(t, err)
	cmd.SetErr(&lockedBuffer{})
	require.NoError(t, cmd.ParseFlags(nil))

	provider, cfg, logger, err := openWatch(cmd, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	assert.Same(t, provider.Current(), cfg)
	assert.Equal(t, "scalars", cfg.Pipeline.ID)
	// logging.level in the file is error.
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}
