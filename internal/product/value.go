package product

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// NotFound is the value a model emits when it could not determine an attribute.
// It is never written to storage.
const NotFound = "not found"

// Value is an attribute value: either a single string or a list of strings.
type Value struct {
	Text string
	List []string
}

// Text builds a scalar value.
func Text(s string) Value { return Value{Text: s} }

// List builds a list value. A nil input still produces a list.
func List(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{List: items}
}

func (v Value) IsList() bool { return v.List != nil }

// IsZero reports whether v carries neither text nor a list.
func (v Value) IsZero() bool { return v.List == nil && v.Text == "" }

// IsNotFound reports whether v is exactly the "not found" sentinel.
func (v Value) IsNotFound() bool { return !v.IsList() && v.Text == NotFound }

// Any returns the JSON-compatible form: string or []string.
func (v Value) Any() any {
	if v.IsList() {
		return v.List
	}
	return v.Text
}

func (v Value) String() string {
	if v.IsList() {
		return fmt.Sprintf("%q", v.List)
	}
	return v.Text
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = Value{}
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out, err := ValueFromAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out, err := ValueFromAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// ValueFromAny converts a decoded JSON/YAML scalar or array into a Value.
// Numbers and booleans are rendered to their string forms; nil yields the zero Value.
func ValueFromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case []any:
		items := make([]string, 0, len(t))
		for i, item := range t {
			s, err := scalarString(item)
			if err != nil {
				return Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, s)
		}
		return List(items...), nil
	case []string:
		return List(t...), nil
	default:
		s, err := scalarString(t)
		if err != nil {
			return Value{}, err
		}
		return Text(s), nil
	}
}

func scalarString(raw any) (string, error) {
	switch t := raw.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", raw)
	}
}
