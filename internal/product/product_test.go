package product_test

import (
	"encoding/json"
	"testing"

	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestAttributeSet_JSONPreservesOrder(t *testing.T) {
	in := `{
		"id": "p1",
		"product_name": "Widget",
		"brand": "Acme",
		"images": ["https://img.test/a.png"],
		"isEnriched": false,
		"attributes": {
			"weight": {"label": "Weight", "value": "", "type": "number", "unit": "kg"},
			"colors": {"label": "Colors", "value": ["red", "blue"], "type": "multiple_values"},
			"size": {"label": "Size", "value": "", "type": "single_select", "options": ["small", "large"]}
		}
	}`

	var p product.Product
	require.NoError(t, json.Unmarshal([]byte(in), &p))
	assert.Equal(t, []string{"weight", "colors", "size"}, p.Attributes.Names())

	colors, ok := p.Attributes.Get("colors")
	require.True(t, ok)
	assert.True(t, colors.Value.IsList())
	assert.Equal(t, []string{"red", "blue"}, colors.Value.List)

	out, err := json.Marshal(p.Attributes)
	require.NoError(t, err)
	var again product.AttributeSet
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, p.Attributes, again)
}

func TestAttributeSet_YAMLPreservesOrder(t *testing.T) {
	in := `
id: p2
product_name: Lamp
brand: Lumen
attributes:
  wattage:
    label: Wattage
    type: number
    unit: W
  description:
    label: Description
    type: long_text
  tags:
    label: Tags
    type: multiple_values
    value: [desk, led]
`
	var p product.Product
	require.NoError(t, yaml.Unmarshal([]byte(in), &p))
	assert.Equal(t, []string{"wattage", "description", "tags"}, p.Attributes.Names())

	tags, _ := p.Attributes.Get("tags")
	assert.Equal(t, []string{"desk", "led"}, tags.Value.List)

	out, err := yaml.Marshal(p)
	require.NoError(t, err)
	var again product.Product
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, p.Attributes.Names(), again.Attributes.Names())
}

func TestAttribute_Kind(t *testing.T) {
	assert.Equal(t, product.KindUnknown, product.Attribute{Name: "tagline"}.Kind())
	assert.Equal(t, product.KindMeasure, product.Attribute{Name: "h", Type: "MEASURE"}.Kind())
	assert.Equal(t, product.KindUnknown, product.Attribute{Name: "x", Type: "exotic"}.Kind())
}

func TestAttributeSet_DecodedTypeDefaultsToShortText(t *testing.T) {
	var fromJSON product.AttributeSet
	require.NoError(t, json.Unmarshal([]byte(`{"tagline": {"label": "Tagline", "value": ""}}`), &fromJSON))
	assert.Equal(t, product.KindShortText, fromJSON[0].Kind())

	var fromYAML product.AttributeSet
	require.NoError(t, yaml.Unmarshal([]byte("tagline:\n  label: Tagline\n"), &fromYAML))
	assert.Equal(t, product.KindShortText, fromYAML[0].Kind())
}

func TestAttributeSet_Validate(t *testing.T) {
	assert.NoError(t, product.AttributeSet{{Name: "a"}, {Name: "b"}}.Validate())
	assert.Error(t, product.AttributeSet{{Name: "a"}, {Name: "a"}}.Validate())
	assert.Error(t, product.AttributeSet{{Name: " "}}.Validate())
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want product.Kind
	}{
		{in: "measure", want: product.KindMeasure},
		{in: "Multiple_Values", want: product.KindMultipleValues},
		{in: "rich_text", want: product.KindRichText},
		{in: "single_select", want: product.KindSingleSelect},
		{in: "NUMBER", want: product.KindNumber},
		{in: "short_text", want: product.KindShortText},
		{in: " long_text ", want: product.KindLongText},
		{in: "", want: product.KindUnknown},
		{in: "exotic", want: product.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, product.ParseKind(tt.in))
		})
	}
}

func TestValueFromAny(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    product.Value
		wantErr bool
	}{
		{name: "string", in: "5kg", want: product.Text("5kg")},
		{name: "float", in: 4.5, want: product.Text("4.5")},
		{name: "integral float", in: float64(12), want: product.Text("12")},
		{name: "bool", in: true, want: product.Text("true")},
		{name: "list", in: []any{"a", 2.0}, want: product.List("a", "2")},
		{name: "empty list", in: []any{}, want: product.List()},
		{name: "nil", in: nil, want: product.Value{}},
		{name: "object", in: map[string]any{"a": 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := product.ValueFromAny(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_IsNotFound(t *testing.T) {
	assert.True(t, product.Text("not found").IsNotFound())
	assert.False(t, product.Text("Not Found").IsNotFound())
	assert.False(t, product.List("not found").IsNotFound())
}
