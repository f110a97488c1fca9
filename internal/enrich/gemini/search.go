package gemini

import (
	"context"
	"strings"

	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/tyler-sommer/stick"
	"google.golang.org/genai"
)

// SearchAgent asks a Google Search grounded model for evidence about a product.
type SearchAgent struct {
	client *Client
}

var _ enrich.SearchAgent = (*SearchAgent)(nil)

func (a *SearchAgent) Search(ctx context.Context, req enrich.EvidenceRequest) (enrich.SearchResult, error) {
	text, err := a.client.prompts.render("search", map[string]stick.Value{
		"name":    req.Name,
		"brand":   req.Brand,
		"barcode": req.Barcode,
		"prompt":  req.Prompt,
	})
	if err != nil {
		return enrich.SearchResult{}, err
	}

	resp, err := a.client.gen.GenerateContent(
		ctx,
		a.client.searchModel,
		genai.Text(text),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			CandidateCount: 1,
		},
	)
	if err != nil {
		return enrich.SearchResult{}, classifyErr(err)
	}

	out := enrich.SearchResult{Text: concatText(resp)}
	if a.client.captureAudit {
		out.Sources = extractSources(resp)
		out.WebSearchQueries = extractWebSearchQueries(resp)
	}
	return out, nil
}

// concatText joins every text part of the first candidate in order.
func concatText(resp *genai.GenerateContentResponse) string {
	c := firstCandidate(resp)
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func extractSources(resp *genai.GenerateContentResponse) []string {
	c := firstCandidate(resp)
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}
	var out []string
	for _, chunk := range c.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		if strings.TrimSpace(chunk.Web.URI) != "" {
			out = append(out, strings.TrimSpace(chunk.Web.URI))
		}
	}
	return dedupePreserveOrder(out)
}

func extractWebSearchQueries(resp *genai.GenerateContentResponse) []string {
	c := firstCandidate(resp)
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}
	return dedupePreserveOrder(c.GroundingMetadata.WebSearchQueries)
}

func dedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
