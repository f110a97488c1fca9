package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	scalarSchema = map[string]any{"type": []string{"string", "number", "boolean", "null"}}
	valueSchema  = map[string]any{
		"anyOf": []any{
			scalarSchema,
			map[string]any{"type": "array", "items": map[string]any{"type": []string{"string", "number", "boolean"}}},
		},
	}
)

// ResultSchema builds the JSON Schema an extraction object must satisfy for attrs.
// Any declared attribute may hold a scalar or a list of scalars; nested objects
// are rejected. Unknown keys are permitted here and dropped by ToResult.
func ResultSchema(attrs product.AttributeSet) ([]byte, error) {
	props := make(map[string]any, len(attrs))
	for _, a := range attrs {
		props[a.Name] = valueSchema
	}
	return json.Marshal(map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	})
}

// ToResult validates obj against the attribute schema and converts it into an
// ExtractionResult. Keys not declared in attrs are dropped and returned so the
// caller can log them; null values are treated as absent.
func ToResult(obj map[string]any, attrs product.AttributeSet) (enrich.ExtractionResult, []string, error) {
	raw, err := ResultSchema(attrs)
	if err != nil {
		return nil, nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(raw)); err != nil {
		return nil, nil, fmt.Errorf("load extraction schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	if err := schema.Validate(any(obj)); err != nil {
		return nil, nil, fmt.Errorf("structured output does not match attribute schema: %w", err)
	}

	out := make(enrich.ExtractionResult, len(obj))
	var dropped []string
	for key, v := range obj {
		if _, ok := attrs.Get(key); !ok {
			dropped = append(dropped, key)
			continue
		}
		val, err := product.ValueFromAny(v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", key, err)
		}
		if val.IsZero() && v == nil {
			continue
		}
		out[key] = val
	}
	slices.Sort(dropped)
	return out, dropped, nil
}
