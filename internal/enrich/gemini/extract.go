package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/tyler-sommer/stick"
	"google.golang.org/genai"
)

// ExtractionAgent asks a multimodal model for attribute values, deterministically.
type ExtractionAgent struct {
	client *Client
}

var _ enrich.ExtractionAgent = (*ExtractionAgent)(nil)

var errEmptyResponse = errors.New("model returned no text")

func (a *ExtractionAgent) Extract(ctx context.Context, req enrich.ExtractionRequest) (string, error) {
	text, err := a.client.prompts.render("extract", map[string]stick.Value{
		"name":      req.Name,
		"brand":     req.Brand,
		"barcode":   req.Barcode,
		"evidence":  req.Evidence,
		"prompt":    req.Prompt,
		"keys":      strings.Join(req.Keys, ", "),
		"not_found": product.NotFound,
	})
	if err != nil {
		return "", err
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.NewPartFromText(text))
	for _, img := range req.Images {
		parts = append(parts, imagePart(img))
	}

	resp, err := a.client.gen.GenerateContent(
		ctx,
		a.client.extractionModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:    genai.Ptr[float32](0),
			CandidateCount: 1,
		},
	)
	if err != nil {
		return "", classifyErr(err)
	}

	raw, ok := firstText(resp)
	if !ok {
		return "", errEmptyResponse
	}
	return raw, nil
}

func imagePart(img enrich.ImagePayload) *genai.Part {
	if img.URI != "" {
		return genai.NewPartFromURI(img.URI, img.MIMEType)
	}
	return genai.NewPartFromBytes(img.Data, img.MIMEType)
}

// firstText returns the first non-thought text part of the first candidate.
func firstText(resp *genai.GenerateContentResponse) (string, bool) {
	c := firstCandidate(resp)
	if c == nil || c.Content == nil {
		return "", false
	}
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		return p.Text, true
	}
	return "", false
}
