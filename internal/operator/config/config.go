// Package config holds the operator's runtime configuration. A Config is
// built once at startup and passed by value; nothing here is global.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// AllNamespaces is the namespace scope that matches every namespace.
const AllNamespaces = "*"

// Config is the operator configuration.
type Config struct {
	// OperationTimeout bounds readiness and quiescence waits
	OperationTimeout time.Duration `mapstructure:"operationTimeout"`
	PollInterval     time.Duration `mapstructure:"pollInterval"`

	// FullReconciliationInterval is the period of the timer driven reconcileAll
	FullReconciliationInterval time.Duration `mapstructure:"fullReconciliationInterval"`

	// TransientRequeueAfter delays the next pass after a transient failure
	TransientRequeueAfter time.Duration `mapstructure:"transientRequeueAfter"`

	// Namespaces to watch; empty or "*" means all
	Namespaces []string `mapstructure:"namespaces"`

	// MaxConcurrentReconciles bounds both controller workers and reconcileAll fan-out
	MaxConcurrentReconciles int `mapstructure:"maxConcurrentReconciles"`

	DefaultCA CADefaults `mapstructure:"defaultCa"`
	Images    Images     `mapstructure:"images"`
}

// CADefaults apply to certificate authorities whose spec leaves them unset.
type CADefaults struct {
	Validity      time.Duration `mapstructure:"validity"`
	RenewBefore   time.Duration `mapstructure:"renewBefore"`
	OverlapWindow time.Duration `mapstructure:"overlapWindow"`
}

// Images are used when a KafkaCluster does not set one.
type Images struct {
	Kafka          string `mapstructure:"kafka"`
	Zookeeper      string `mapstructure:"zookeeper"`
	EntityOperator string `mapstructure:"entityOperator"`
	KafkaExporter  string `mapstructure:"kafkaExporter"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OperationTimeout:           5 * time.Minute,
		PollInterval:               2 * time.Second,
		FullReconciliationInterval: 2 * time.Minute,
		TransientRequeueAfter:      30 * time.Second,
		MaxConcurrentReconciles:    4,
		DefaultCA: CADefaults{
			Validity:      365 * 24 * time.Hour,
			RenewBefore:   30 * 24 * time.Hour,
			OverlapWindow: 24 * time.Hour,
		},
		Images: Images{
			Kafka:          "quay.io/strimzi/kafka:0.45.0-kafka-3.9.0",
			Zookeeper:      "quay.io/strimzi/kafka:0.45.0-kafka-3.9.0",
			EntityOperator: "quay.io/strimzi/operator:0.45.0",
			KafkaExporter:  "quay.io/strimzi/kafka:0.45.0-kafka-3.9.0",
		},
	}
}

// FromEnv returns the defaults overridden by environment variables.
// Unset or unparsable variables keep their default.
//
// Environment Variables:
//   - KAFKA_OPERATOR_OPERATION_TIMEOUT (default: 5m)
//   - KAFKA_OPERATOR_POLL_INTERVAL (default: 2s)
//   - KAFKA_OPERATOR_FULL_RECONCILIATION_INTERVAL (default: 2m)
//   - KAFKA_OPERATOR_TRANSIENT_REQUEUE_AFTER (default: 30s)
//   - KAFKA_OPERATOR_NAMESPACES (comma separated, default: all)
//   - KAFKA_OPERATOR_MAX_CONCURRENT_RECONCILES (default: 4)
//   - KAFKA_OPERATOR_KAFKA_IMAGE, KAFKA_OPERATOR_ZOOKEEPER_IMAGE,
//     KAFKA_OPERATOR_ENTITY_OPERATOR_IMAGE, KAFKA_OPERATOR_KAFKA_EXPORTER_IMAGE
func FromEnv() Config {
	cfg := Default()
	cfg.OperationTimeout = parseDuration("KAFKA_OPERATOR_OPERATION_TIMEOUT", cfg.OperationTimeout)
	cfg.PollInterval = parseDuration("KAFKA_OPERATOR_POLL_INTERVAL", cfg.PollInterval)
	cfg.FullReconciliationInterval = parseDuration("KAFKA_OPERATOR_FULL_RECONCILIATION_INTERVAL", cfg.FullReconciliationInterval)
	cfg.TransientRequeueAfter = parseDuration("KAFKA_OPERATOR_TRANSIENT_REQUEUE_AFTER", cfg.TransientRequeueAfter)
	cfg.MaxConcurrentReconciles = parseInt("KAFKA_OPERATOR_MAX_CONCURRENT_RECONCILES", cfg.MaxConcurrentReconciles)
	if v := os.Getenv("KAFKA_OPERATOR_NAMESPACES"); v != "" {
		cfg.Namespaces = splitList(v)
	}
	cfg.Images.Kafka = parseString("KAFKA_OPERATOR_KAFKA_IMAGE", cfg.Images.Kafka)
	cfg.Images.Zookeeper = parseString("KAFKA_OPERATOR_ZOOKEEPER_IMAGE", cfg.Images.Zookeeper)
	cfg.Images.EntityOperator = parseString("KAFKA_OPERATOR_ENTITY_OPERATOR_IMAGE", cfg.Images.EntityOperator)
	cfg.Images.KafkaExporter = parseString("KAFKA_OPERATOR_KAFKA_EXPORTER_IMAGE", cfg.Images.KafkaExporter)
	return cfg
}

// LoadFile overlays the YAML file at path onto base and validates the result.
func LoadFile(path string, base Config) (Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg := base
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the reconciler cannot run with.
func (c Config) Validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"operationTimeout", c.OperationTimeout},
		{"pollInterval", c.PollInterval},
		{"fullReconciliationInterval", c.FullReconciliationInterval},
		{"transientRequeueAfter", c.TransientRequeueAfter},
		{"defaultCa.validity", c.DefaultCA.Validity},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.PollInterval >= c.OperationTimeout {
		return fmt.Errorf("pollInterval %s must be shorter than operationTimeout %s", c.PollInterval, c.OperationTimeout)
	}
	if c.DefaultCA.RenewBefore < 0 || c.DefaultCA.RenewBefore >= c.DefaultCA.Validity {
		return fmt.Errorf("defaultCa.renewBefore %s must be within [0, %s)", c.DefaultCA.RenewBefore, c.DefaultCA.Validity)
	}
	if c.DefaultCA.OverlapWindow < 0 {
		return fmt.Errorf("defaultCa.overlapWindow must not be negative, got %s", c.DefaultCA.OverlapWindow)
	}
	if c.MaxConcurrentReconciles < 1 {
		return fmt.Errorf("maxConcurrentReconciles must be at least 1, got %d", c.MaxConcurrentReconciles)
	}
	if c.Images.Kafka == "" || c.Images.Zookeeper == "" {
		return fmt.Errorf("kafka and zookeeper images are required")
	}
	return nil
}

// WatchesAllNamespaces reports whether the operator is cluster scoped.
func (c Config) WatchesAllNamespaces() bool {
	if len(c.Namespaces) == 0 {
		return true
	}
	for _, ns := range c.Namespaces {
		if ns == AllNamespaces {
			return true
		}
	}
	return false
}

// Scopes returns the namespace scopes a full reconciliation iterates over.
func (c Config) Scopes() []string {
	if c.WatchesAllNamespaces() {
		return []string{AllNamespaces}
	}
	return c.Namespaces
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func parseString(envVar, defaultVal string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
