// Package parse pulls structured attribute values out of a model's markdown response.
package parse

import (
	"encoding/json"
	"iter"
	"regexp"

	"github.com/palantir/product-attribute-enrichment/internal/enrich"
)

// fenceRe matches one triple-backtick block, optionally tagged json.
var fenceRe = regexp.MustCompile("(?i)```(?:json)?\\s*([\\s\\S]*?)```")

// Blocks yields the contents of each fenced code block in order of appearance.
// Blocks are located lazily: iteration stops scanning once the consumer stops.
func Blocks(raw string) iter.Seq[string] {
	return func(yield func(string) bool) {
		offset := 0
		for offset < len(raw) {
			loc := fenceRe.FindStringSubmatchIndex(raw[offset:])
			if loc == nil {
				return
			}
			if !yield(raw[offset+loc[2] : offset+loc[3]]) {
				return
			}
			offset += loc[1]
		}
	}
}

// Parse returns the first fenced block that decodes as a JSON object. Later
// blocks are only tried when earlier ones fail; malformed JSON is never repaired.
func Parse(raw string) (map[string]any, error) {
	for block := range Blocks(raw) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(block), &obj); err != nil || obj == nil {
			continue
		}
		return obj, nil
	}
	return nil, enrich.ErrNoStructuredData
}
