package config

import (
	"Go2NetPeriod/internal/model"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AnalysisConfig holds the tunables of the grouping pipeline and the statistics engine.
type AnalysisConfig struct {
	LocalAddress        string `yaml:"local_address"`
	ServerLimit         int    `yaml:"server_limit"`
	NegligibleThreshold int    `yaml:"negligible_threshold"`
	ExcludeZeroPayload  bool   `yaml:"exclude_zero_payload"`
	ZeroPayloadMarker   string `yaml:"zero_payload_marker"`
	ReportVariance      bool   `yaml:"report_variance"`
	ReportThroughput    bool   `yaml:"report_throughput"`
	State               string `yaml:"state"`
	Workers             int    `yaml:"workers"`
}

// OutputConfig defines where the report and the diagrams go.
type OutputConfig struct {
	ReportPath string `yaml:"report_path"`
	DiagramDir string `yaml:"diagram_dir"`
	Plot       bool   `yaml:"plot"`
}

// NATSConfig holds the connection settings of the NATS publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// KafkaConfig holds the connection settings of the Kafka publisher.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// PublisherDef defines a single publisher from the config file.
type PublisherDef struct {
	Type    string      `yaml:"type"`
	Enabled bool        `yaml:"enabled"`
	NATS    NATSConfig  `yaml:"nats"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// APIConfig holds the settings of the report server.
type APIConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	GRPCAddr  string `yaml:"grpc_addr"`
	ReportDir string `yaml:"report_dir"`
	InputDir  string `yaml:"input_dir"` // root of the files analyze requests may open
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Analysis   AnalysisConfig `yaml:"analysis"`
	Output     OutputConfig   `yaml:"output"`
	Publishers []PublisherDef `yaml:"publishers"`
	API        APIConfig      `yaml:"api"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			ServerLimit:         3,
			NegligibleThreshold: 10,
			ZeroPayloadMarker:   "Len=0",
			ReportVariance:      true,
			ReportThroughput:    true,
			Workers:             1,
		},
		Output: OutputConfig{
			ReportPath: "result.txt",
			DiagramDir: "Diagrams",
		},
		API: APIConfig{
			HTTPAddr:  ":8080",
			GRPCAddr:  ":9090",
			ReportDir: ".",
			InputDir:  ".",
		},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Keys missing from the file keep their default values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.ServerLimit <= 0 {
		return fmt.Errorf("analysis.server_limit must be positive, got %d", a.ServerLimit)
	}
	if a.NegligibleThreshold < 0 {
		return fmt.Errorf("analysis.negligible_threshold must not be negative, got %d", a.NegligibleThreshold)
	}
	if a.ExcludeZeroPayload && a.ZeroPayloadMarker == "" {
		return fmt.Errorf("analysis.zero_payload_marker must be set when exclude_zero_payload is on")
	}
	if a.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be positive, got %d", a.Workers)
	}
	if _, err := model.ParseState(a.State); err != nil {
		return fmt.Errorf("analysis.state: %w", err)
	}
	for i, p := range c.Publishers {
		if p.Type == "" {
			return fmt.Errorf("publishers[%d]: missing type", i)
		}
	}
	return nil
}
