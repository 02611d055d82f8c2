package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, s Settings)
	}{
		{
			name:  "recognized keys",
			input: `{"temperature":0.7,"max_tokens":1000,"model":"openai/gpt-4o"}`,
			check: func(t *testing.T, s Settings) {
				require.NotNil(t, s.Temperature)
				assert.InDelta(t, 0.7, *s.Temperature, 1e-9)
				require.NotNil(t, s.MaxTokens)
				assert.Equal(t, 1000, *s.MaxTokens)
				assert.Equal(t, "openai/gpt-4o", s.Model)
				assert.Empty(t, s.Extra)
			},
		},
		{
			name:  "camel case max tokens",
			input: `{"maxTokens":256}`,
			check: func(t *testing.T, s Settings) {
				require.NotNil(t, s.MaxTokens)
				assert.Equal(t, 256, *s.MaxTokens)
				assert.Empty(t, s.Extra)
			},
		},
		{
			name:  "unknown keys pass through",
			input: `{"top_k":40,"stop":["\n\n"]}`,
			check: func(t *testing.T, s Settings) {
				assert.Nil(t, s.Temperature)
				assert.Equal(t, float64(40), s.Extra["top_k"])
				assert.Equal(t, []any{"\n\n"}, s.Extra["stop"])
			},
		},
		{
			name:  "empty object",
			input: `{}`,
			check: func(t *testing.T, s Settings) {
				assert.Equal(t, Settings{}, s)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Settings
			require.NoError(t, json.Unmarshal([]byte(tt.input), &s))
			tt.check(t, s)

			// the encoded form decodes to the same settings
			out, err := json.Marshal(s)
			require.NoError(t, err)
			var again Settings
			require.NoError(t, json.Unmarshal(out, &again))
			assert.Equal(t, s, again)
		})
	}
}

func TestSettingsRejectsBadShape(t *testing.T) {
	var s Settings
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"temperature":"hot"}`), &s))
}

func TestSettingsValidation(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name    string
		s       Settings
		wantErr bool
	}{
		{name: "empty", s: Settings{}},
		{name: "in range", s: Settings{Temperature: Ptr(1.2), MaxTokens: Ptr(10), TopP: Ptr(0.9)}},
		{name: "temperature too high", s: Settings{Temperature: Ptr(2.5)}, wantErr: true},
		{name: "zero max tokens", s: Settings{MaxTokens: Ptr(0)}, wantErr: true},
		{name: "top p above one", s: Settings{TopP: Ptr(1.5)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSettingsMerge(t *testing.T) {
	base := Settings{Model: "a", Temperature: Ptr(0.3), Extra: map[string]any{"seed": 1}}
	merged := base.Merge(Settings{Temperature: Ptr(0.9), Extra: map[string]any{"stop": "x"}})

	assert.Equal(t, "a", merged.Model)
	assert.InDelta(t, 0.9, *merged.Temperature, 1e-9)
	assert.Equal(t, map[string]any{"seed": 1, "stop": "x"}, merged.Extra)
	// base is untouched
	assert.Equal(t, map[string]any{"seed": 1}, base.Extra)
}

func TestJSONMapScan(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(`{"temperature":0.3}`))
	assert.InDelta(t, 0.3, m["temperature"], 1e-9)

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))

	v, err := JSONMap{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}
