// Package gemini adapts the Gemini API to the enrichment pipeline's search and
// extraction agents.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"google.golang.org/genai"
)

const (
	DefaultSearchModel     = "gemini-2.5-flash"
	DefaultExtractionModel = "gemini-2.5-pro"
)

type Config struct {
	APIKey string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	SearchModel     string
	ExtractionModel string

	// CaptureAudit controls whether grounding sources/queries are kept on search results.
	CaptureAudit bool
}

// Generator is the subset of *genai.Models the agents call.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client owns the Gemini connection and hands out the two agents.
type Client struct {
	gen             Generator
	searchModel     string
	extractionModel string
	captureAudit    bool
	prompts         *promptRenderer
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return NewWithGenerator(client.Models, cfg)
}

// NewWithGenerator builds a Client on top of an existing generator.
func NewWithGenerator(gen Generator, cfg Config) (*Client, error) {
	if gen == nil {
		return nil, errors.New("gemini generator is required")
	}
	prompts, err := newPromptRenderer()
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}
	c := &Client{
		gen:             gen,
		searchModel:     strings.TrimSpace(cfg.SearchModel),
		extractionModel: strings.TrimSpace(cfg.ExtractionModel),
		captureAudit:    cfg.CaptureAudit,
		prompts:         prompts,
	}
	if c.searchModel == "" {
		c.searchModel = DefaultSearchModel
	}
	if c.extractionModel == "" {
		c.extractionModel = DefaultExtractionModel
	}
	return c, nil
}

func (c *Client) SearchAgent() *SearchAgent {
	return &SearchAgent{client: c}
}

func (c *Client) ExtractionAgent() *ExtractionAgent {
	return &ExtractionAgent{client: c}
}

// quotaRetries caps retries of a 429 that reports an exhausted quota.
const quotaRetries = 1

func classifyErr(err error) error {
	// Wrap transient failures so the worker pool will retry with backoff.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 && strings.Contains(strings.ToLower(apiErr.Message), "quota") {
			return &enrich.LimitedTransientError{Err: err, ExtraRetries: quotaRetries}
		}
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &enrich.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &enrich.TransientError{Err: err}
	}
	return err
}

func firstCandidate(resp *genai.GenerateContentResponse) *genai.Candidate {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	return resp.Candidates[0]
}
