// Package config loads listingflow settings from the environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file.
const ConfigFileEnv = "LISTINGFLOW_CONFIG"

// Table backends.
const (
	BackendFirestore = "firestore"
	BackendRedis     = "redis"
)

// Config holds every setting, read once at cold start.
type Config struct {
	ProjectID string `mapstructure:"project_id"`

	// Loader destination.
	DestinationTable  string `mapstructure:"destination_table"`
	TableBackend      string `mapstructure:"table_backend"`
	RedisURL          string `mapstructure:"redis_url"`
	TransformStrategy string `mapstructure:"transform_strategy"`
	PartitionLabel    string `mapstructure:"partition_label"`
	WorkflowID        string `mapstructure:"workflow_id"`
	WorkflowLocation  string `mapstructure:"workflow_location"`

	// Exporter destination.
	DestinationBucket  string        `mapstructure:"destination_bucket"`
	KeyPrefix          string        `mapstructure:"key_prefix"`
	ContentType        string        `mapstructure:"content_type"`
	KMSKeyName         string        `mapstructure:"kms_key_name"`
	ObjectIfAbsent     bool          `mapstructure:"object_if_absent"`
	ValidateField      string        `mapstructure:"validate_field"`
	ExternalAPIBaseURL string        `mapstructure:"external_api_base_url"`
	ExternalAPITimeout time.Duration `mapstructure:"external_api_timeout"`
	NATSURL            string        `mapstructure:"nats_url"`
	EmitSubject        string        `mapstructure:"emit_subject"`

	// PushgatewayURL enables pushing metrics after every batch.
	PushgatewayURL string `mapstructure:"pushgateway_url"`

	// Batch fan-out.
	MaxConcurrency int  `mapstructure:"max_concurrency"`
	FailFast       bool `mapstructure:"fail_fast"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads configuration from the environment, layered over the YAML file
// named by $LISTINGFLOW_CONFIG when it is set.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variables override with no prefix: destination_table <- DESTINATION_TABLE.
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("project_id", "")

	v.SetDefault("destination_table", "")
	v.SetDefault("table_backend", BackendFirestore)
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("transform_strategy", "identity")
	v.SetDefault("partition_label", "LISTING")
	v.SetDefault("workflow_id", "")
	v.SetDefault("workflow_location", "us-central1")

	v.SetDefault("destination_bucket", "")
	v.SetDefault("key_prefix", "")
	v.SetDefault("content_type", "application/json")
	v.SetDefault("kms_key_name", "")
	v.SetDefault("object_if_absent", false)
	v.SetDefault("validate_field", "name")
	v.SetDefault("external_api_base_url", "")
	v.SetDefault("external_api_timeout", "10s")
	v.SetDefault("nats_url", "")
	v.SetDefault("emit_subject", "")

	v.SetDefault("pushgateway_url", "")

	v.SetDefault("max_concurrency", 0)
	v.SetDefault("fail_fast", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// ValidateLoader checks the settings the table-loading function needs.
func (c *Config) ValidateLoader() error {
	var errs []error
	if c.DestinationTable == "" {
		errs = append(errs, errors.New("DESTINATION_TABLE must be set"))
	}
	switch c.TableBackend {
	case BackendFirestore:
		if c.ProjectID == "" {
			errs = append(errs, errors.New("PROJECT_ID must be set for the firestore backend"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL must be set for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TABLE_BACKEND %q", c.TableBackend))
	}
	if c.WorkflowID != "" && c.ProjectID == "" {
		errs = append(errs, errors.New("PROJECT_ID must be set when WORKFLOW_ID is set"))
	}
	errs = append(errs, c.validateCommon()...)
	return errors.Join(errs...)
}

// ValidateExporter checks the settings the copy-through function needs.
func (c *Config) ValidateExporter() error {
	var errs []error
	if c.DestinationBucket == "" {
		errs = append(errs, errors.New("DESTINATION_BUCKET must be set"))
	}
	if c.ValidateField == "" {
		errs = append(errs, errors.New("VALIDATE_FIELD must be set"))
	}
	if c.EmitSubject != "" && c.NATSURL == "" {
		errs = append(errs, errors.New("NATS_URL must be set when EMIT_SUBJECT is set"))
	}
	errs = append(errs, c.validateCommon()...)
	return errors.Join(errs...)
}

func (c *Config) validateCommon() []error {
	var errs []error
	if c.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must not be negative, got %d", c.MaxConcurrency))
	}
	return errs
}
