package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, 2, config.Orchestrator.MaxRetries)
	assert.Equal(t, time.Second, config.Orchestrator.RetryDelay.Std())
	assert.Equal(t, 60*time.Second, config.Orchestrator.InvocationTimeout.Std())
	assert.InDelta(t, 0.3, config.Orchestrator.DefaultTemperature, 1e-9)
	assert.Equal(t, "gauntlet.db", filepath.Base(config.Database.Path))
	assert.NoError(t, NewValidator().Validate(config))
}

func TestConfigValidation(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "invalid temperature", mutate: func(c *Config) { c.Orchestrator.DefaultTemperature = 3.0 }, field: "DefaultTemperature"},
		{name: "negative retries", mutate: func(c *Config) { c.Orchestrator.MaxRetries = -1 }, field: "MaxRetries"},
		{name: "zero invocation timeout", mutate: func(c *Config) { c.Orchestrator.InvocationTimeout = 0 }, field: "InvocationTimeout"},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, field: "Level"},
		{name: "invalid log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, field: "Format"},
		{name: "bad listen address", mutate: func(c *Config) { c.Server.Addr = "8080" }, field: "Addr"},
		{name: "missing database", mutate: func(c *Config) { c.Database.Path = "" }, field: "Path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := validator.Validate(c)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Field, tt.field)
		})
	}
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.Std())

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoaderPrecedence(t *testing.T) {
	dir := t.TempDir()
	user := filepath.Join(dir, "user", "config.json")
	project := filepath.Join(dir, "project", "config.json")
	writeFile(t, user, `{"server":{"addr":":9000"},"orchestrator":{"max_retries":4,"retry_delay":"500ms"}}`)
	writeFile(t, project, `{"orchestrator":{"max_retries":1}}`)

	env := map[string]string{"TEST_LOG_LEVEL": "debug", "TEST_INVOCATION_TIMEOUT": "5s"}
	l := NewLoader(ConfigPrecedence{
		SystemConfig:      filepath.Join(dir, "missing.json"),
		UserConfig:        user,
		ProjectConfig:     project,
		EnvironmentPrefix: "TEST",
	})
	l.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	config, err := l.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9000", config.Server.Addr)
	assert.Equal(t, 1, config.Orchestrator.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, config.Orchestrator.RetryDelay.Std())
	assert.Equal(t, 5*time.Second, config.Orchestrator.InvocationTimeout.Std())
	assert.Equal(t, "debug", config.Logging.Level)
	// untouched keys keep their defaults
	assert.InDelta(t, 0.3, config.Orchestrator.DefaultTemperature, 1e-9)
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	noEnv := func(string) (string, bool) { return "", false }

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		writeFile(t, path, `{"server":`)
		l := NewLoader(ConfigPrecedence{UserConfig: path})
		l.lookupEnv = noEnv
		_, err := l.Load("")
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := filepath.Join(dir, "unknown.json")
		writeFile(t, path, `{"agent":{"model":"x"}}`)
		l := NewLoader(ConfigPrecedence{UserConfig: path})
		l.lookupEnv = noEnv
		_, err := l.Load("")
		assert.Error(t, err)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		l := NewLoader(ConfigPrecedence{})
		l.lookupEnv = noEnv
		_, err := l.Load(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})

	t.Run("bad env number", func(t *testing.T) {
		l := NewLoader(ConfigPrecedence{EnvironmentPrefix: "TEST"})
		l.lookupEnv = func(k string) (string, bool) {
			if k == "TEST_MAX_RETRIES" {
				return "many", true
			}
			return "", false
		}
		_, err := l.Load("")
		assert.Error(t, err)
	})

	t.Run("invalid result", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.json")
		writeFile(t, path, `{"logging":{"level":"verbose"}}`)
		l := NewLoader(ConfigPrecedence{ProjectConfig: path})
		l.lookupEnv = noEnv
		_, err := l.Load("")
		var ve ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestLoaderDotEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	writeFile(t, dotenv, "GAUNTLET_TEST_DOTENV_KEY=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("GAUNTLET_TEST_DOTENV_KEY") })

	l := NewLoader(ConfigPrecedence{DotEnv: dotenv})
	_, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", os.Getenv("GAUNTLET_TEST_DOTENV_KEY"))

	// a missing .env is fine
	l = NewLoader(ConfigPrecedence{DotEnv: filepath.Join(dir, "absent.env")})
	_, err = l.Load("")
	assert.NoError(t, err)
}

func TestSaveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	l := NewLoader(ConfigPrecedence{})
	l.lookupEnv = func(string) (string, bool) { return "", false }

	config := DefaultConfig()
	config.Server.Addr = "127.0.0.1:7000"
	require.NoError(t, l.SaveFile(config, path))

	loaded, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", loaded.Server.Addr)

	config.Logging.Level = "nope"
	assert.Error(t, l.SaveFile(config, filepath.Join(t.TempDir(), "x.json")))
}
