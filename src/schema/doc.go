// Package schema publishes JSON Schema definitions for request bodies that
// are not plain Go structs: participant settings, whose unknown keys pass
// through to the provider, and run creation requests.
//
// Example usage:
//
//	data, err := schema.Marshal(schema.Settings())
package schema
