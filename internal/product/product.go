// Package product holds the product record and its typed attribute schema.
package product

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Product is a full product record as owned by the storage collaborator.
type Product struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"product_name" yaml:"product_name"`
	Brand      string       `json:"brand" yaml:"brand"`
	Barcode    string       `json:"barcode,omitempty" yaml:"barcode,omitempty"`
	Images     []string     `json:"images" yaml:"images"`
	IsEnriched bool         `json:"isEnriched" yaml:"isEnriched"`
	Attributes AttributeSet `json:"attributes" yaml:"attributes"`
}

// Attribute is one declared attribute of a product.
type Attribute struct {
	// Name is the key of the attribute within its product. It is not part of the
	// serialized attribute body; AttributeSet carries it as the object key.
	Name    string   `json:"-" yaml:"-"`
	Label   string   `json:"label" yaml:"label"`
	Value   Value    `json:"value" yaml:"value"`
	Type    string   `json:"type" yaml:"type"`
	Unit    string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// DefaultType is assigned to decoded attributes that declare no type.
const DefaultType = "short_text"

// Kind resolves the declared type.
func (a Attribute) Kind() Kind {
	return ParseKind(a.Type)
}

// AttributeSet is an ordered name -> Attribute map. It serializes as a JSON/YAML
// object and keeps declaration order, which drives prompt numbering.
type AttributeSet []Attribute

// Names returns attribute names in declaration order.
func (s AttributeSet) Names() []string {
	out := make([]string, 0, len(s))
	for _, a := range s {
		out = append(out, a.Name)
	}
	return out
}

// Get looks up an attribute by name.
func (s AttributeSet) Get(name string) (Attribute, bool) {
	for _, a := range s {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Validate checks that every attribute has a non-empty, unique name.
func (s AttributeSet) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, a := range s {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("attribute %d: empty name", i)
		}
		if _, ok := seen[a.Name]; ok {
			return fmt.Errorf("attribute %q: duplicate name", a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}

func (s AttributeSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *AttributeSet) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("attributes: expected object")
	}
	var out AttributeSet
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("attributes: unexpected key %v", keyTok)
		}
		var a Attribute
		if err := dec.Decode(&a); err != nil {
			return fmt.Errorf("attributes.%s: %w", name, err)
		}
		a.Name = name
		if strings.TrimSpace(a.Type) == "" {
			a.Type = DefaultType
		}
		out = append(out, a)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

func (s AttributeSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range s {
		var v yaml.Node
		if err := v.Encode(attributeYAML{
			Label:   a.Label,
			Value:   a.Value.Any(),
			Type:    a.Type,
			Unit:    a.Unit,
			Options: a.Options,
		}); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: a.Name}, &v)
	}
	return node, nil
}

func (s *AttributeSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("attributes: expected mapping, got line %d", node.Line)
	}
	out := make(AttributeSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var a Attribute
		if err := node.Content[i+1].Decode(&a); err != nil {
			return fmt.Errorf("attributes.%s: %w", name, err)
		}
		a.Name = name
		if strings.TrimSpace(a.Type) == "" {
			a.Type = DefaultType
		}
		out = append(out, a)
	}
	*s = out
	return nil
}

type attributeYAML struct {
	Label   string   `yaml:"label"`
	Value   any      `yaml:"value"`
	Type    string   `yaml:"type"`
	Unit    string   `yaml:"unit,omitempty"`
	Options []string `yaml:"options,omitempty"`
}
