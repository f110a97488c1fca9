// Package merge decides which extracted values are written back to a product.
package merge

import (
	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/product"
)

// Accept filters result down to the values worth persisting. Values equal to the
// "not found" sentinel are skipped so the stored value stays untouched. The
// returned update always marks the product as enriched, even when no value
// survives, because the flag records that enrichment was attempted.
func Accept(result enrich.ExtractionResult) enrich.Update {
	values := make(map[string]product.Value, len(result))
	for name, v := range result {
		if v.IsNotFound() {
			continue
		}
		values[name] = v
	}
	return enrich.Update{Values: values, Enriched: true}
}
