package product

import "strings"

// Kind is the closed set of attribute kinds the prompt generator understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindMeasure
	KindMultipleValues
	KindRichText
	KindSingleSelect
	KindNumber
	KindShortText
	KindLongText
)

var kindNames = map[Kind]string{
	KindMeasure:        "measure",
	KindMultipleValues: "multiple_values",
	KindRichText:       "rich_text",
	KindSingleSelect:   "single_select",
	KindNumber:         "number",
	KindShortText:      "short_text",
	KindLongText:       "long_text",
}

// ParseKind maps a declared type name onto a Kind. Matching is case-insensitive;
// anything unrecognized (including the empty string) is KindUnknown.
func ParseKind(raw string) Kind {
	s := strings.ToLower(strings.TrimSpace(raw))
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}
