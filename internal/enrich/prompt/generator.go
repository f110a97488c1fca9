// Package prompt turns a typed attribute schema into numbered extraction instructions.
package prompt

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/palantir/product-attribute-enrichment/internal/product"
)

type templateFunc func(title string, a product.Attribute) string

// templates holds one instruction template per known kind. Kinds without an
// entry fall back to the bare attribute name.
var templates = map[product.Kind]templateFunc{
	product.KindMeasure: func(title string, a product.Attribute) string {
		if a.Unit == "" {
			return title + ": Generate a measurement."
		}
		return title + ": Generate a measurement in the unit " + a.Unit + "."
	},
	product.KindMultipleValues: func(title string, _ product.Attribute) string {
		return title + ": Generate multiple values."
	},
	product.KindRichText: func(title string, _ product.Attribute) string {
		return title + ": Generate a complete and detailed rich text (HTML) response. The length should be at least 200 words."
	},
	product.KindSingleSelect: func(title string, a product.Attribute) string {
		opts := make([]string, 0, len(a.Options))
		for _, o := range a.Options {
			opts = append(opts, TitleCase(o))
		}
		return title + ": Select the most appropriate option from: " + strings.Join(opts, ", ") + "."
	},
	product.KindNumber: func(title string, a product.Attribute) string {
		line := title + ": Generate a number"
		if a.Unit != "" {
			line += ", with unit: " + a.Unit
		}
		return line + "."
	},
	product.KindShortText: func(title string, _ product.Attribute) string {
		return title + ": Generate short text (shorter than 50 characters)."
	},
	product.KindLongText: func(title string, _ product.Attribute) string {
		return title + ": Generate a complete and detailed textual response. The length should be at least 200 words."
	},
}

// Line renders the instruction for a single attribute, without numbering.
func Line(a product.Attribute) string {
	tpl, ok := templates[a.Kind()]
	if !ok {
		return a.Name
	}
	return tpl(TitleCase(a.Name), a)
}

// Generate renders one "{i}. <instruction>\n" line per attribute, 1-indexed, in
// input order. An empty schema yields the empty string.
func Generate(attrs product.AttributeSet) string {
	var b strings.Builder
	for i, a := range attrs {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(Line(a))
		b.WriteByte('\n')
	}
	return b.String()
}

// TitleCase upper-cases the first letter of every run of letters and lower-cases
// the rest, so "item_weight" becomes "Item_Weight" and "3d size" becomes "3D Size".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && prevLetter:
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToTitle(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}
