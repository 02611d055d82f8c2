package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestSettingsSchema(t *testing.T) {
	data, err := Marshal(Settings())
	require.NoError(t, err)
	m := decode(t, data)

	assert.Equal(t, "object", m["type"])
	assert.Equal(t, true, m["additionalProperties"])

	props := m["properties"].(map[string]any)
	temp := props["temperature"].(map[string]any)
	assert.Equal(t, "number", temp["type"])
	assert.Equal(t, float64(0), temp["minimum"])
	assert.Equal(t, float64(2), temp["maximum"])

	tokens := props["max_tokens"].(map[string]any)
	assert.Equal(t, "integer", tokens["type"])
	assert.Equal(t, float64(0), tokens["exclusiveMinimum"])
}

func TestRunRequestSchema(t *testing.T) {
	data, err := Marshal(RunRequest([]string{"Red", "Blue"}))
	require.NoError(t, err)
	m := decode(t, data)

	assert.Equal(t, "Run request", m["title"])
	assert.ElementsMatch(t, []any{"arena_id", "input_prompt"}, m["required"])

	props := m["properties"].(map[string]any)
	items := props["participants"].(map[string]any)["items"].(map[string]any)
	role := items["properties"].(map[string]any)["role"].(map[string]any)
	assert.Nil(t, role["enum"])
	assert.Equal(t, []any{"Red", "Blue"}, role["examples"])
}
