// Package config loads the agent's configuration from a JSON or YAML
// file plus environment variable overrides, and mirrors a fixed set of
// leaf values into the library's OptionStore by dotted path
// (internal/option; see Mirror) so the rest of the agent can address
// those settings the same way it addresses any other option.
//
// DefaultConfig populates every section; LoadFromFile unmarshals over
// the defaults, then LoadFromEnv applies environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/iotagent/internal/option"
	"github.com/oriys/iotagent/internal/value"
)

// QueueConfig sizes the bounded request queue (internal/dispatch).
type QueueConfig struct {
	Max int `json:"max" yaml:"max"`
}

// DispatchConfig controls the worker pool draining the queue.
type DispatchConfig struct {
	Workers     int           `json:"workers" yaml:"workers"`
	StopTimeout time.Duration `json:"stop_timeout" yaml:"stop_timeout"`
}

// PoolConfig sizes the telemetry/action/alarm pools (internal/pool).
type PoolConfig struct {
	StackMax int `json:"stack_max" yaml:"stack_max"`
	Max      int `json:"max" yaml:"max"`
}

// CommandConfig configures the external-command adapter (internal/command).
// OutputDir, when set, enables the on-disk capture store for command
// stdout/stderr (internal/logging.OutputStore); captures expire after
// OutputRetention.
type CommandConfig struct {
	DefaultTimeout  time.Duration `json:"default_timeout" yaml:"default_timeout"`
	OutputCapBytes  int           `json:"output_cap_bytes" yaml:"output_cap_bytes"`
	OutputDir       string        `json:"output_dir" yaml:"output_dir"`
	OutputRetention time.Duration `json:"output_retention" yaml:"output_retention"`
}

// MQTTConfig configures the reference transport plugin (internal/mqttplugin).
type MQTTConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	BrokerURL      string        `json:"broker_url" yaml:"broker_url"`
	ClientID       string        `json:"client_id" yaml:"client_id"`
	TopicPrefix    string        `json:"topic_prefix" yaml:"topic_prefix"`
	KeepAlive      time.Duration `json:"keep_alive" yaml:"keep_alive"`
	ControlRPCAddr string        `json:"control_rpc_addr" yaml:"control_rpc_addr"` // internal companion-process control channel
}

// TelemetryStoreConfig configures the optional durable audit sink
// (internal/telemetrystore). Off by default: the core agent has no
// persistence requirement, this is a domain extension.
type TelemetryStoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

// FileTransferConfig configures the optional S3-backed upload/download
// backend in internal/filetransfer.
type FileTransferConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Bucket  string `json:"bucket" yaml:"bucket"`
	Region  string `json:"region" yaml:"region"`
	Prefix  string `json:"prefix" yaml:"prefix"`
}

// IdentityConfig controls where the agent's persisted device id lives.
type IdentityConfig struct {
	Path string `json:"path" yaml:"path"`
}

// TracingConfig configures OpenTelemetry span export (internal/tracing).
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

// MetricsConfig configures the Prometheus exporter (internal/metrics).
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	Path    string `json:"path" yaml:"path"`
}

// LoggingConfig configures the request logger and the operational
// slog logger (internal/logging).
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Console    bool   `json:"console" yaml:"console"`
	FilePath   string `json:"file_path" yaml:"file_path"`
	JSONFormat bool   `json:"json_format" yaml:"json_format"`
}

// ObservabilityConfig bundles the three observability sections.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// Config is the agent's full typed configuration.
type Config struct {
	Queue          QueueConfig          `json:"queue" yaml:"queue"`
	Dispatch       DispatchConfig       `json:"dispatch" yaml:"dispatch"`
	Pool           PoolConfig           `json:"pool" yaml:"pool"`
	Command        CommandConfig        `json:"command" yaml:"command"`
	MQTT           MQTTConfig           `json:"mqtt" yaml:"mqtt"`
	TelemetryStore TelemetryStoreConfig `json:"telemetry_store" yaml:"telemetry_store"`
	FileTransfer   FileTransferConfig   `json:"file_transfer" yaml:"file_transfer"`
	Identity       IdentityConfig       `json:"identity" yaml:"identity"`
	Observability  ObservabilityConfig  `json:"observability" yaml:"observability"`
}

// DefaultConfig returns a Config populated with the agent's defaults,
// every value safe to run with unmodified on a single device.
func DefaultConfig() *Config {
	return &Config{
		Queue:    QueueConfig{Max: 64},
		Dispatch: DispatchConfig{Workers: 4, StopTimeout: 5 * time.Second},
		Pool:     PoolConfig{StackMax: 16, Max: 256},
		Command: CommandConfig{
			DefaultTimeout:  30 * time.Second,
			OutputCapBytes:  64 * 1024,
			OutputRetention: 10 * time.Minute,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			ClientID:    "iotagent",
			TopicPrefix: "iotagent",
			KeepAlive:   30 * time.Second,
		},
		TelemetryStore: TelemetryStoreConfig{Enabled: false},
		FileTransfer:   FileTransferConfig{Enabled: false},
		Identity:       IdentityConfig{Path: "/var/lib/iotagent/device-id"},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{Enabled: false, ServiceName: "iotagent", SampleRatio: 0.1},
			Metrics: MetricsConfig{Enabled: true, Addr: ":9100", Path: "/metrics"},
			Logging: LoggingConfig{Level: "info", Console: true, JSONFormat: false},
		},
	}
}

// LoadFromFile reads path (JSON or YAML, chosen by extension — .yaml
// and .yml decode with yaml.v3, everything else with encoding/json)
// and unmarshals it over DefaultConfig(), so a config file only needs
// to name the fields it overrides.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse json %s: %w", path, err)
		}
	}
	return cfg, nil
}

// LoadFromEnv applies IOTAGENT_* environment variable overrides on top
// of cfg, mutating and returning it.
func LoadFromEnv(cfg *Config) *Config {
	if v := os.Getenv("IOTAGENT_QUEUE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.Max = n
		}
	}
	if v := os.Getenv("IOTAGENT_DISPATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.Workers = n
		}
	}
	if v := os.Getenv("IOTAGENT_POOL_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.Max = n
		}
	}
	if v := os.Getenv("IOTAGENT_POOL_STACK_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.StackMax = n
		}
	}
	if v := os.Getenv("IOTAGENT_COMMAND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Command.DefaultTimeout = d
		}
	}
	if v := os.Getenv("IOTAGENT_MQTT_ENABLED"); v != "" {
		cfg.MQTT.Enabled = parseBool(v, cfg.MQTT.Enabled)
	}
	if v := os.Getenv("IOTAGENT_MQTT_BROKER_URL"); v != "" {
		cfg.MQTT.BrokerURL = v
	}
	if v := os.Getenv("IOTAGENT_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv("IOTAGENT_TELEMETRY_STORE_ENABLED"); v != "" {
		cfg.TelemetryStore.Enabled = parseBool(v, cfg.TelemetryStore.Enabled)
	}
	if v := os.Getenv("IOTAGENT_TELEMETRY_STORE_DSN"); v != "" {
		cfg.TelemetryStore.DSN = v
	}
	if v := os.Getenv("IOTAGENT_FILE_TRANSFER_ENABLED"); v != "" {
		cfg.FileTransfer.Enabled = parseBool(v, cfg.FileTransfer.Enabled)
	}
	if v := os.Getenv("IOTAGENT_FILE_TRANSFER_BUCKET"); v != "" {
		cfg.FileTransfer.Bucket = v
	}
	if v := os.Getenv("IOTAGENT_FILE_TRANSFER_REGION"); v != "" {
		cfg.FileTransfer.Region = v
	}
	if v := os.Getenv("IOTAGENT_IDENTITY_PATH"); v != "" {
		cfg.Identity.Path = v
	}
	if v := os.Getenv("IOTAGENT_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v, cfg.Observability.Tracing.Enabled)
	}
	if v := os.Getenv("IOTAGENT_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("IOTAGENT_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v, cfg.Observability.Metrics.Enabled)
	}
	if v := os.Getenv("IOTAGENT_METRICS_ADDR"); v != "" {
		cfg.Observability.Metrics.Addr = v
	}
	if v := os.Getenv("IOTAGENT_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("IOTAGENT_LOG_FILE"); v != "" {
		cfg.Observability.Logging.FilePath = v
	}
	return cfg
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// toValue converts a Go scalar into the value.Value it mirrors as.
func toValue(v any) (value.Value, error) {
	switch x := v.(type) {
	case bool:
		return value.Bool(x), nil
	case int:
		return value.Int64(int64(x)), nil
	case int64:
		return value.Int64(x), nil
	case string:
		return value.OwnedString(x), nil
	default:
		return value.Value{}, fmt.Errorf("config: unsupported mirror type %T", v)
	}
}

// Mirror writes the leaf fields listed below into store by dotted path
// (e.g. "queue.max", "dispatch.workers", "mqtt.broker_url"), so
// callers that only know dotted option names can read configuration
// through the same OptionStore used for telemetry and action metadata.
// Fields not listed (for example mqtt.keep_alive, telemetry_store.dsn,
// the tracing exporter settings and the logging output settings) are
// not mirrored.
func Mirror(cfg *Config, store *option.Store) error {
	leaves := map[string]any{
		"queue.max":                     cfg.Queue.Max,
		"dispatch.workers":              cfg.Dispatch.Workers,
		"dispatch.stop_timeout_ms":      cfg.Dispatch.StopTimeout.Milliseconds(),
		"pool.stack_max":                cfg.Pool.StackMax,
		"pool.max":                      cfg.Pool.Max,
		"command.default_timeout_ms":    cfg.Command.DefaultTimeout.Milliseconds(),
		"command.output_cap_bytes":      cfg.Command.OutputCapBytes,
		"mqtt.enabled":                  cfg.MQTT.Enabled,
		"mqtt.broker_url":               cfg.MQTT.BrokerURL,
		"mqtt.client_id":                cfg.MQTT.ClientID,
		"mqtt.topic_prefix":             cfg.MQTT.TopicPrefix,
		"telemetry_store.enabled":       cfg.TelemetryStore.Enabled,
		"file_transfer.enabled":         cfg.FileTransfer.Enabled,
		"file_transfer.bucket":          cfg.FileTransfer.Bucket,
		"identity.path":                 cfg.Identity.Path,
		"observability.tracing.enabled": cfg.Observability.Tracing.Enabled,
		"observability.metrics.enabled": cfg.Observability.Metrics.Enabled,
		"observability.metrics.addr":    cfg.Observability.Metrics.Addr,
		"observability.logging.level":   cfg.Observability.Logging.Level,
	}
	for path, v := range leaves {
		val, err := toValue(v)
		if err != nil {
			return fmt.Errorf("config: mirror %s: %w", path, err)
		}
		if err := store.Set(path, val); err != nil {
			return fmt.Errorf("config: mirror %s: %w", path, err)
		}
	}
	return nil
}
