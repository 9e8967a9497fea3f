package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// SchemaFor infers a JSON schema from a Go type. Struct field descriptions come
// from `jsonschema` tags; fields tagged omitempty are optional.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema: %w", err)
	}
	return schema, nil
}

// MustSchemaFor is SchemaFor for package-level schemas built from static types.
func MustSchemaFor[T any]() *jsonschema.Schema {
	schema, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return schema
}

// SchemaMap renders a schema as the generic map most provider SDKs accept.
func SchemaMap(schema *jsonschema.Schema) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object"}, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeObject validates raw against schema and decodes it into T.
func DecodeObject[T any](name string, raw json.RawMessage, schema *jsonschema.Schema) (T, error) {
	var out T
	if schema != nil {
		resolved, err := resolve(schema)
		if err != nil {
			return out, fmt.Errorf("resolve %s schema: %w", name, err)
		}
		var instance any
		if err := json.Unmarshal(raw, &instance); err != nil {
			return out, ErrInvalidObject{Name: name, Err: err}
		}
		if err := resolved.Validate(instance); err != nil {
			return out, ErrInvalidObject{Name: name, Err: err}
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, ErrInvalidObject{Name: name, Err: err}
	}
	return out, nil
}

var (
	resolveMu       sync.Mutex
	resolvedSchemas = map[*jsonschema.Schema]*jsonschema.Resolved{}
)

// resolve caches resolution per schema; schemas passed here are long-lived
// package values and must not be mutated after first use.
func resolve(schema *jsonschema.Schema) (*jsonschema.Resolved, error) {
	resolveMu.Lock()
	defer resolveMu.Unlock()
	if r, ok := resolvedSchemas[schema]; ok {
		return r, nil
	}
	r, err := schema.Resolve(nil)
	if err != nil {
		return nil, err
	}
	resolvedSchemas[schema] = r
	return r, nil
}
