package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
	// lookupEnv defaults to os.LookupEnv
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader(precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
		lookupEnv:  os.LookupEnv,
	}
}

// Load reads the .env file, then every config file in order of precedence,
// then environment overrides, and validates the result. Missing files are
// skipped. An explicit path, when given, is read last and must exist.
func (l *Loader) Load(explicit string) (*Config, error) {
	if l.precedence.DotEnv != "" {
		if err := godotenv.Load(l.precedence.DotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", l.precedence.DotEnv, err)
		}
	}

	config := DefaultConfig()

	sources := []struct {
		path   string
		source ConfigSource
	}{
		{l.precedence.SystemConfig, SourceSystem},
		{l.precedence.UserConfig, SourceUser},
		{l.precedence.ProjectConfig, SourceProject},
	}
	for _, src := range sources {
		if src.path == "" {
			continue
		}
		err := l.mergeFile(config, src.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
		}
	}
	if explicit != "" {
		if err := l.mergeFile(config, explicit); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", explicit, err)
		}
	}

	if l.precedence.EnvironmentPrefix != "" {
		if err := l.applyEnvironmentOverrides(config); err != nil {
			return nil, err
		}
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// mergeFile decodes the file over config, so only keys present in the file
// replace what is already set.
func (l *Loader) mergeFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides applies PREFIX_* variables to config
func (l *Loader) applyEnvironmentOverrides(config *Config) error {
	prefix := l.precedence.EnvironmentPrefix + "_"

	strs := map[string]*string{
		"DB":            &config.Database.Path,
		"ADDR":          &config.Server.Addr,
		"LOG_LEVEL":     &config.Logging.Level,
		"LOG_FORMAT":    &config.Logging.Format,
		"DEFAULT_MODEL": &config.Orchestrator.DefaultModel,
		"EXPORT_DIR":    &config.Export.Directory,
	}
	for key, dst := range strs {
		if v, ok := l.lookupEnv(prefix + key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_RETRIES":     &config.Orchestrator.MaxRetries,
		"MAX_CONCURRENCY": &config.Orchestrator.MaxConcurrency,
	}
	for key, dst := range ints {
		if v, ok := l.lookupEnv(prefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", prefix, key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*Duration{
		"INVOCATION_TIMEOUT": &config.Orchestrator.InvocationTimeout,
		"RETRY_DELAY":        &config.Orchestrator.RetryDelay,
	}
	for key, dst := range durations {
		if v, ok := l.lookupEnv(prefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", prefix, key, err)
			}
			*dst = Duration(d)
		}
	}

	if v, ok := l.lookupEnv(prefix + "DEFAULT_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sDEFAULT_TEMPERATURE: %w", prefix, err)
		}
		config.Orchestrator.DefaultTemperature = f
	}
	return nil
}

// Load reads configuration from the standard locations plus an optional
// explicit file.
func Load(explicit string) (*Config, error) {
	return NewLoader(GetConfigPaths()).Load(explicit)
}
