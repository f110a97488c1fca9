// Package enrich defines the attribute enrichment pipeline's collaborators and
// the values that flow between them.
package enrich

import (
	"context"

	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/core"
)

// ImagePayload is a resolved product image ready to be attached to a model call.
// Exactly one of Data or URI is set: URI is an opaque object-storage handle the
// model backend reads itself.
type ImagePayload struct {
	Ref      string
	MIMEType string
	Data     []byte
	URI      string
}

// EvidenceRequest is the per-product input to evidence gathering and search.
type EvidenceRequest struct {
	ProductID string
	Name      string
	Brand     string
	Barcode   string
	Images    []string
	Prompt    string
}

// SearchResult is the grounded text evidence for one product.
type SearchResult struct {
	Text string

	// Optional audit fields, populated when audit capture is enabled.
	Sources          []string
	WebSearchQueries []string
}

// ExtractionRequest carries everything the extraction model sees for one product.
type ExtractionRequest struct {
	ProductID string
	Name      string
	Brand     string
	Barcode   string
	Evidence  string
	Prompt    string
	Keys      []string
	Images    []ImagePayload
}

// ExtractionResult maps attribute names to extracted values. Keys are always a
// subset of the product's declared attributes.
type ExtractionResult map[string]product.Value

// ImageResolver turns image references into payloads. Per-image failures are
// reported in the returned slice and never abort the remaining references; the
// error return is reserved for faults that should fail the whole product.
type ImageResolver interface {
	Resolve(ctx context.Context, refs []string) ([]ImagePayload, []*ResolutionError, error)
}

// SearchAgent gathers grounded text evidence about a product.
type SearchAgent interface {
	Search(ctx context.Context, req EvidenceRequest) (SearchResult, error)
}

// ExtractionAgent asks a multimodal model for attribute values and returns its raw text.
type ExtractionAgent interface {
	Extract(ctx context.Context, req ExtractionRequest) (string, error)
}

// Update is the accepted change set for one product.
type Update struct {
	Values   map[string]product.Value
	Enriched bool
}

// Fields renders u in the dotted document-path form used by the product store,
// e.g. {"attributes.weight.value": "5kg", "isEnriched": true}.
func (u Update) Fields() map[string]any {
	out := make(map[string]any, len(u.Values)+1)
	for name, v := range u.Values {
		out["attributes."+name+".value"] = v.Any()
	}
	out["isEnriched"] = u.Enriched
	return out
}

// Store is the product storage collaborator. UpdateOne must apply the whole
// update in a single write scoped by both product id and owner.
type Store interface {
	FindOne(ctx context.Context, id, owner string) (product.Product, error)
	UpdateOne(ctx context.Context, id, owner string, u Update) (int64, error)
}

// TransientError marks an error as retryable by pipeline workers.
type TransientError = core.TransientError

// LimitedTransientError is retryable, but only up to its own cap.
type LimitedTransientError = core.LimitedTransientError
