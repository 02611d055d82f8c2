package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the complete configuration for gauntlet
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Logging      LoggingConfig      `json:"logging"`
	Export       ExportConfig       `json:"export"`
}

// DatabaseConfig locates the sqlite database
type DatabaseConfig struct {
	// Path to the database file; ":memory:" for a throwaway database
	Path string `json:"path" validate:"required"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080"
	Addr string `json:"addr" validate:"required,hostname_port"`

	// SessionTTL is the lifetime of tokens issued by seed
	SessionTTL Duration `json:"session_ttl" validate:"gt=0"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout Duration `json:"shutdown_timeout" validate:"gte=0"`

	// BodyLimit caps request bodies in bytes
	BodyLimit int `json:"body_limit" validate:"gte=0"`
}

// OrchestratorConfig tunes run execution
type OrchestratorConfig struct {
	// InvocationTimeout bounds one model call attempt
	InvocationTimeout Duration `json:"invocation_timeout" validate:"gt=0"`

	// MaxRetries is the number of extra attempts after a transient failure
	MaxRetries int `json:"max_retries" validate:"gte=0,lte=10"`

	// RetryDelay grows linearly with the attempt number
	RetryDelay Duration `json:"retry_delay" validate:"gte=0"`

	// DefaultTemperature applies to arenas created without one
	DefaultTemperature float64 `json:"default_temperature" validate:"gte=0,lte=2"`

	// MaxConcurrency caps in-flight invocations per round; 0 is unlimited
	MaxConcurrency int `json:"max_concurrency" validate:"gte=0"`

	// DefaultModel is used when a participant's settings name no model
	DefaultModel string `json:"default_model,omitempty"`

	// SiteName is sent to OpenRouter as the X-Title header
	SiteName string `json:"site_name,omitempty"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" validate:"log_level"`

	// Format is the output format (text, json)
	Format string `json:"format,omitempty" validate:"log_format"`
}

// ExportConfig configures run export files
type ExportConfig struct {
	// Directory receives run-<id>.json files
	Directory string `json:"directory" validate:"required"`
}

// Duration is a time.Duration written as "1m30s" in JSON. Plain numbers
// are read as nanoseconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// ValidationError reports the first invalid field
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceEnvironment ConfigSource = "environment"
)

// ConfigPrecedence lists where configuration is read from, lowest
// precedence first
type ConfigPrecedence struct {
	SystemConfig  string
	UserConfig    string
	ProjectConfig string
	// DotEnv is loaded into the process environment without overriding
	// variables that are already set
	DotEnv            string
	EnvironmentPrefix string
}
