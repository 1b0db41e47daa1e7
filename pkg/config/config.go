// Package config provides configuration structures and loading logic for flowctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/polisai/polis-flow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Config holds the full flowctl configuration: ambient settings plus one
// pipeline declaration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Runner    RunnerConfig    `yaml:"runner"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	Environment  string `yaml:"environment"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	// Headers are attached to every OTLP export, e.g. collector credentials.
	Headers map[string]string `yaml:"headers"`
	// ResourceAttributes are extra attributes on the exported resource.
	ResourceAttributes map[string]string `yaml:"resource_attributes"`
}

// RunnerConfig holds execution options.
type RunnerConfig struct {
	Parallel    int  `yaml:"parallel"`
	AllowCycles bool `yaml:"allow_cycles"`
}

// MetricsConfig holds the Prometheus listener used by watch mode.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// PipelineConfig declares the nodes and edges of a pipeline.
type PipelineConfig struct {
	ID    string       `yaml:"id"`
	Nodes []NodeConfig `yaml:"nodes"`
	Edges []EdgeConfig `yaml:"edges"`
}

// NodeConfig declares one node instance.
type NodeConfig struct {
	ID     string         `yaml:"id"`
	Kind   string         `yaml:"kind"`
	Output bool           `yaml:"output"`
	Params map[string]any `yaml:"params"`
}

// EdgeConfig connects one or more sources to a destination.
type EdgeConfig struct {
	From StringList `yaml:"from"`
	To   string     `yaml:"to"`
}

// StringList accepts either a single scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// Default returns a configuration with every default applied and no pipeline.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "flowctl",
		},
		Runner: RunnerConfig{
			Parallel: 1,
		},
		Metrics: MetricsConfig{
			Address: ":9464",
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	//nolint:gosec // Config file path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults, applies environment
// overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse: %v", domain.ErrConfigInvalid, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("FLOW_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("FLOW_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	if val := os.Getenv("FLOW_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("FLOW_OTLP_INSECURE"); val != "" {
		insecure, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%w: FLOW_OTLP_INSECURE=%q: %v", domain.ErrConfigInvalid, val, err)
		}
		cfg.Telemetry.Insecure = insecure
	}
	if val := os.Getenv("FLOW_OTLP_HEADERS"); val != "" {
		headers, err := parseHeaders(val)
		if err != nil {
			return fmt.Errorf("%w: FLOW_OTLP_HEADERS: %v", domain.ErrConfigInvalid, err)
		}
		if cfg.Telemetry.Headers == nil {
			cfg.Telemetry.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Telemetry.Headers[k] = v
		}
	}

	if val := os.Getenv("FLOW_PARALLEL"); val != "" {
		parallel, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: FLOW_PARALLEL=%q: %v", domain.ErrConfigInvalid, val, err)
		}
		cfg.Runner.Parallel = parallel
	}

	if val := os.Getenv("FLOW_METRICS_ADDR"); val != "" {
		cfg.Metrics.Address = val
	}

	return nil
}

// parseHeaders reads "key=value" pairs separated by commas.
func parseHeaders(raw string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

// Validate performs validation of the entire configuration
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	if err := c.Runner.Validate(); err != nil {
		return fmt.Errorf("runner configuration: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline configuration: %w", err)
	}

	return nil
}

// Validate performs validation of logging configuration
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}
	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
	default:
		return fmt.Errorf("%w: invalid log level %q, supported levels: debug, info, warn, error", domain.ErrConfigInvalid, c.Level)
	}

	if strings.TrimSpace(c.Format) == "" {
		c.Format = "json"
	}
	format := strings.TrimSpace(strings.ToLower(c.Format))
	switch format {
	case "json", "text":
		c.Format = format
	default:
		return fmt.Errorf("%w: invalid log format %q, supported formats: json, text", domain.ErrConfigInvalid, c.Format)
	}
	return nil
}

// Validate performs validation of runner configuration
func (c *RunnerConfig) Validate() error {
	if c.Parallel < 0 {
		return fmt.Errorf("%w: parallel must not be negative, got %d", domain.ErrConfigInvalid, c.Parallel)
	}
	if c.Parallel == 0 {
		c.Parallel = 1
	}
	return nil
}

// Validate checks node declarations and edge references. Type compatibility is
// checked later, when the pipeline is built.
func (c *PipelineConfig) Validate() error {
	declared := make(map[string]bool, len(c.Nodes))
	for i, node := range c.Nodes {
		id := node.ID
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: node #%d has no id", domain.ErrConfigInvalid, i)
		}
		if declared[id] {
			return fmt.Errorf("%w: node %q declared twice", domain.ErrConfigInvalid, id)
		}
		if strings.TrimSpace(node.Kind) == "" {
			return fmt.Errorf("%w: node %q has no kind", domain.ErrConfigInvalid, id)
		}
		declared[id] = true
	}

	for i, edge := range c.Edges {
		if len(edge.From) == 0 {
			return fmt.Errorf("%w: edge #%d has no source", domain.ErrConfigInvalid, i)
		}
		if !declared[edge.To] {
			return fmt.Errorf("%w: edge #%d targets undeclared node %q", domain.ErrConfigInvalid, i, edge.To)
		}
		for _, from := range edge.From {
			if !declared[from] {
				return fmt.Errorf("%w: edge #%d starts at undeclared node %q", domain.ErrConfigInvalid, i, from)
			}
		}
	}
	return nil
}

// PipelineSpec converts the pipeline declaration into its domain form.
func (c *Config) PipelineSpec() domain.PipelineSpec {
	spec := domain.PipelineSpec{
		ID:          c.Pipeline.ID,
		AllowCycles: c.Runner.AllowCycles,
		Nodes:       make([]domain.NodeSpec, 0, len(c.Pipeline.Nodes)),
		Edges:       make([]domain.EdgeSpec, 0, len(c.Pipeline.Edges)),
	}

	for _, node := range c.Pipeline.Nodes {
		spec.Nodes = append(spec.Nodes, domain.NodeSpec{
			ID:     domain.NodeID(node.ID),
			Kind:   node.Kind,
			Output: node.Output,
			Params: node.Params,
		})
	}

	for _, edge := range c.Pipeline.Edges {
		from := make([]domain.NodeID, 0, len(edge.From))
		for _, id := range edge.From {
			from = append(from, domain.NodeID(id))
		}
		spec.Edges = append(spec.Edges, domain.EdgeSpec{From: from, To: domain.NodeID(edge.To)})
	}

	return spec
}
