package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
)

// JSONMap is a JSON object stored as TEXT in the database
type JSONMap map[string]any

// Scan implements the sql.Scanner interface for JSONMap
func (j *JSONMap) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = JSONMap{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan type %T into JSONMap", value)
	}
	if len(raw) == 0 {
		*j = JSONMap{}
		return nil
	}
	m := JSONMap{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// Value implements the driver.Valuer interface for JSONMap
func (j JSONMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(j))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Settings is the typed form of a participant's generation settings.
// Recognized keys are validated; anything else is carried in Extra and
// passed through to the provider untouched.
type Settings struct {
	Model       string         `json:"model,omitempty"`
	Temperature *float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int           `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	TopP        *float64       `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	Extra       map[string]any `json:"-"`
}

var settingsKeys = map[string]bool{
	"model":       true,
	"temperature": true,
	"max_tokens":  true,
	"maxTokens":   true,
	"top_p":       true,
}

// UnmarshalJSON splits recognized keys from the provider-specific extras.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("settings must be a JSON object: %w", err)
	}

	// maxTokens is accepted for compatibility with older participant rows
	if raw, ok := all["maxTokens"]; ok {
		if _, dup := all["max_tokens"]; !dup {
			all["max_tokens"] = raw
		}
	}

	type known struct {
		Model       string   `json:"model"`
		Temperature *float64 `json:"temperature"`
		MaxTokens   *int     `json:"max_tokens"`
		TopP        *float64 `json:"top_p"`
	}
	var k known
	b, _ := json.Marshal(all)
	if err := json.Unmarshal(b, &k); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	*s = Settings{
		Model:       k.Model,
		Temperature: k.Temperature,
		MaxTokens:   k.MaxTokens,
		TopP:        k.TopP,
	}
	for key, raw := range all {
		if settingsKeys[key] {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("invalid settings value for %q: %w", key, err)
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[key] = v
	}
	return nil
}

// MarshalJSON flattens Extra next to the recognized keys.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+4)
	maps.Copy(out, s.Extra)
	if s.Model != "" {
		out["model"] = s.Model
	}
	if s.Temperature != nil {
		out["temperature"] = *s.Temperature
	}
	if s.MaxTokens != nil {
		out["max_tokens"] = *s.MaxTokens
	}
	if s.TopP != nil {
		out["top_p"] = *s.TopP
	}
	return json.Marshal(out)
}

// Scan implements the sql.Scanner interface for Settings
func (s *Settings) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = Settings{}
		return nil
	case string:
		if v == "" {
			*s = Settings{}
			return nil
		}
		return s.UnmarshalJSON([]byte(v))
	case []byte:
		if len(v) == 0 {
			*s = Settings{}
			return nil
		}
		return s.UnmarshalJSON(v)
	default:
		return fmt.Errorf("cannot scan type %T into Settings", value)
	}
}

// Value implements the driver.Valuer interface for Settings
func (s Settings) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Merge returns s with every field set in override taking precedence.
func (s Settings) Merge(override Settings) Settings {
	out := s
	if override.Model != "" {
		out.Model = override.Model
	}
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.MaxTokens != nil {
		out.MaxTokens = override.MaxTokens
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if len(override.Extra) > 0 {
		out.Extra = maps.Clone(s.Extra)
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(override.Extra))
		}
		maps.Copy(out.Extra, override.Extra)
	}
	return out
}
