package schema

import (
	"encoding/json"

	jsonschema "github.com/swaggest/jsonschema-go"
)

func typed(t string, description string) *jsonschema.Schema {
	st := jsonschema.SimpleType(t)
	s := &jsonschema.Schema{Type: &jsonschema.Type{SimpleTypes: &st}}
	if description != "" {
		s.Description = &description
	}
	return s
}

// stringSchema creates a string field
func stringSchema(description string) *jsonschema.Schema {
	return typed("string", description)
}

// enumSchema creates a string field limited to values
func enumSchema(description string, values []string) *jsonschema.Schema {
	s := typed("string", description)
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return s
}

// numberSchema creates a number field bounded by [lo, hi]
func numberSchema(description string, lo, hi float64) *jsonschema.Schema {
	s := typed("number", description)
	s.Minimum = &lo
	s.Maximum = &hi
	return s
}

// positiveIntSchema creates an integer field greater than zero
func positiveIntSchema(description string) *jsonschema.Schema {
	s := typed("integer", description)
	zero := 0.0
	s.ExclusiveMinimum = &zero
	return s
}

// objectSchema creates an object. additional controls whether keys other
// than properties are accepted.
func objectSchema(properties map[string]*jsonschema.Schema, required []string, additional bool) *jsonschema.Schema {
	s := typed("object", "")
	s.Properties = make(map[string]jsonschema.SchemaOrBool, len(properties))
	for name, prop := range properties {
		s.Properties[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}
	s.Required = required
	s.AdditionalProperties = &jsonschema.SchemaOrBool{TypeBoolean: &additional}
	return s
}

func arraySchema(description string, items *jsonschema.Schema) *jsonschema.Schema {
	s := typed("array", description)
	s.Items = &jsonschema.Items{SchemaOrBool: &jsonschema.SchemaOrBool{TypeObject: items}}
	return s
}

// Settings describes participant settings. Recognized keys are bounded;
// any other key is passed to the provider untouched.
func Settings() *jsonschema.Schema {
	s := objectSchema(map[string]*jsonschema.Schema{
		"model":       stringSchema("Model identifier sent to the provider"),
		"temperature": numberSchema("Sampling temperature", 0, 2),
		"max_tokens":  positiveIntSchema("Completion token limit"),
		"top_p":       numberSchema("Nucleus sampling probability mass", 0, 1),
	}, nil, true)
	title := "Participant settings"
	s.Title = &title
	return s
}

// RunRequest describes the body of a run creation request.
func RunRequest(roles []string) *jsonschema.Schema {
	participant := objectSchema(map[string]*jsonschema.Schema{
		"participant_id": stringSchema("Saved participant to bind"),
		"provider_id":    stringSchema("Provider, when no saved participant is given"),
		"persona_id":     stringSchema("Persona, when no saved participant is given"),
		"role":           enumSchema("Debate role; custom roles are accepted too", roles),
		"settings":       Settings(),
	}, []string{"role"}, false)
	// the enum lists suggestions only
	participant.Properties["role"].TypeObject.Enum = nil
	participant.Properties["role"].TypeObject.Examples = toAny(roles)

	s := objectSchema(map[string]*jsonschema.Schema{
		"arena_id":     stringSchema("Arena to run"),
		"input_prompt": stringSchema("Question put to the participants"),
		"participants": arraySchema("Participants; empty binds the arena's saved slots", participant),
		"start":        typed("boolean", "Start the run right away"),
	}, []string{"arena_id", "input_prompt"}, false)
	title := "Run request"
	s.Title = &title
	return s
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Marshal renders a schema as indented JSON.
func Marshal(s *jsonschema.Schema) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
