package tools

import "github.com/google/jsonschema-go/jsonschema"

// objectSchema builds an object schema from named properties, marking
// required as the required subset. Every tool's InputSchema is built
// this way instead of hand-written JSON literals, so the schema and the
// Go-side argument decoding can't drift independently.
func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func stringProp(desc string) *jsonschema.Schema { return &jsonschema.Schema{Type: "string", Description: desc} }
func intProp(desc string) *jsonschema.Schema    { return &jsonschema.Schema{Type: "integer", Description: desc} }
func boolProp(desc string) *jsonschema.Schema   { return &jsonschema.Schema{Type: "boolean", Description: desc} }

func arrayProp(desc string, items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: desc, Items: items}
}

// extJSONProp documents a field carrying an extended-JSON value (filters,
// updates, pipelines, documents), passed as a JSON object or array — left
// untyped rather than given a nested object schema since its shape is
// BSON-dependent, not statically known.
func extJSONProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Description: desc + " (extended JSON)"}
}
