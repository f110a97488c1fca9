// Package pipeline runs attribute enrichment over batches of products.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/enrich/merge"
	"github.com/palantir/product-attribute-enrichment/internal/enrich/parse"
	"github.com/palantir/product-attribute-enrichment/internal/enrich/prompt"
	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/redact"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/worker"
	"go.uber.org/zap"
)

type Options struct {
	Workers    int
	MaxRetries int
	// CallTimeout bounds each search, extraction and storage call.
	CallTimeout time.Duration
	// ProductTimeout bounds one attempt at a whole product.
	ProductTimeout time.Duration
	RateLimitRPS   float64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 60 * time.Second
	}
	if o.ProductTimeout <= 0 {
		o.ProductTimeout = 5 * time.Minute
	}
	return o
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Images  enrich.ImageResolver
	Search  enrich.SearchAgent
	Extract enrich.ExtractionAgent
	Store   enrich.Store
	Logger  *zap.Logger
}

// Orchestrator composes prompt generation, evidence gathering, extraction,
// parsing and merging for each product of a batch.
type Orchestrator struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Images == nil:
		return nil, errors.New("pipeline: image resolver is required")
	case deps.Search == nil:
		return nil, errors.New("pipeline: search agent is required")
	case deps.Extract == nil:
		return nil, errors.New("pipeline: extraction agent is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, opts: opts.withDefaults()}, nil
}

// Outcome is the result of enriching one product. Err is nil exactly when the
// accepted update was written.
type Outcome struct {
	ProductID string
	Update    enrich.Update

	ResolutionErrors []*enrich.ResolutionError
	Dropped          []string
	Sources          []string
	WebSearchQueries []string

	Err error
}

func (o Outcome) Enriched() bool { return o.Err == nil }

// BatchReport lists one outcome per input product, in input order.
type BatchReport struct {
	RunID     string
	Attempted int
	Failed    int
	Outcomes  []Outcome
}

func (r BatchReport) Message() string {
	return fmt.Sprintf("Enriched %d product(s)", r.Attempted-r.Failed)
}

type resultJSON struct {
	ProductID string `json:"product_id"`
	Error     string `json:"error,omitempty"`
}

// MarshalJSON renders the caller-facing report. Error strings are redacted.
func (r BatchReport) MarshalJSON() ([]byte, error) {
	results := make([]resultJSON, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		item := resultJSON{ProductID: o.ProductID}
		if o.Err != nil {
			item.Error = redact.Secrets(o.Err.Error())
		}
		results = append(results, item)
	}
	return json.Marshal(struct {
		Message         string       `json:"message"`
		EnrichedResults []resultJSON `json:"enriched_results"`
	}{
		Message:         r.Message(),
		EnrichedResults: results,
	})
}

// EnrichBatch enriches every product on behalf of owner. Per-product failures
// are recorded in the report and never abort the batch; the returned error is
// non-nil only for a malformed batch (wrapping enrich.ErrInvalidBatch).
//
// Cancelling ctx stops scheduling new products. Products already in flight run
// to completion and the rest are reported as not started.
func (o *Orchestrator) EnrichBatch(ctx context.Context, owner string, products []product.Product) (BatchReport, error) {
	if err := validateBatch(owner, products); err != nil {
		return BatchReport{}, err
	}

	runID := uuid.NewString()
	logger := o.deps.Logger.With(zap.String("run", runID))
	start := time.Now()
	logger.Info("batch start",
		zap.Int("products", len(products)),
		zap.Int("workers", o.opts.Workers),
		zap.Int("max_retries", o.opts.MaxRetries),
		zap.Duration("call_timeout", o.opts.CallTimeout),
		zap.Float64("rate_limit_rps", o.opts.RateLimitRPS),
	)

	process := func(ctx context.Context, p product.Product) (Outcome, error) {
		return o.enrichOne(ctx, logger, owner, p)
	}
	results, err := worker.ProcessAll(ctx, products, process, worker.Options{
		Workers:           o.opts.Workers,
		MaxRetries:        o.opts.MaxRetries,
		RequestTimeout:    o.opts.ProductTimeout,
		RateLimitRPS:      o.opts.RateLimitRPS,
		FailurePolicy:     worker.FailurePolicyPartialOutput,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMax:        2 * time.Second,
		BackoffJitterFrac: 0.2,
	})
	if err != nil {
		logger.Warn("batch interrupted", zap.Error(err))
	}

	report := BatchReport{RunID: runID, Attempted: len(results), Outcomes: make([]Outcome, 0, len(results))}
	for _, res := range results {
		out := res.Output
		out.ProductID = res.Input.ID
		out.Err = res.Err
		if out.Err != nil {
			report.Failed++
			out.Update = enrich.Update{}
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	logger.Info("batch complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return report, nil
}

func (o *Orchestrator) enrichOne(ctx context.Context, logger *zap.Logger, owner string, p product.Product) (Outcome, error) {
	logger = logger.With(zap.String("product_id", p.ID))
	start := time.Now()
	out := Outcome{ProductID: p.ID}

	instructions := prompt.Generate(p.Attributes)

	payloads, resErrs, err := o.deps.Images.Resolve(ctx, p.Images)
	out.ResolutionErrors = resErrs
	if err != nil {
		return o.fail(logger, out, fmt.Errorf("resolve images: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	evidence, err := o.deps.Search.Search(callCtx, enrich.EvidenceRequest{
		ProductID: p.ID,
		Name:      p.Name,
		Brand:     p.Brand,
		Barcode:   p.Barcode,
		Images:    p.Images,
		Prompt:    instructions,
	})
	cancel()
	out.Sources = evidence.Sources
	out.WebSearchQueries = evidence.WebSearchQueries
	if err != nil {
		return o.fail(logger, out, &enrich.SearchError{Err: err})
	}

	callCtx, cancel = context.WithTimeout(ctx, o.opts.CallTimeout)
	raw, err := o.deps.Extract.Extract(callCtx, enrich.ExtractionRequest{
		ProductID: p.ID,
		Name:      p.Name,
		Brand:     p.Brand,
		Barcode:   p.Barcode,
		Evidence:  evidence.Text,
		Prompt:    instructions,
		Keys:      p.Attributes.Names(),
		Images:    payloads,
	})
	cancel()
	if err != nil {
		return o.fail(logger, out, &enrich.ExtractionError{Err: err})
	}

	obj, err := parse.Parse(raw)
	if err != nil {
		return o.fail(logger, out, &enrich.ParseError{Err: err})
	}
	result, dropped, err := parse.ToResult(obj, p.Attributes)
	if err != nil {
		return o.fail(logger, out, &enrich.ParseError{Err: err})
	}
	out.Dropped = dropped
	if len(dropped) > 0 {
		logger.Debug("dropped undeclared attributes", zap.Strings("keys", dropped))
	}

	out.Update = merge.Accept(result)

	callCtx, cancel = context.WithTimeout(ctx, o.opts.CallTimeout)
	n, err := o.deps.Store.UpdateOne(callCtx, p.ID, owner, out.Update)
	cancel()
	if err != nil {
		return o.fail(logger, out, &enrich.StoreError{Err: err})
	}
	if n == 0 {
		return o.fail(logger, out, fmt.Errorf("%w: %s", enrich.ErrProductNotFound, p.ID))
	}

	logger.Info("product enriched",
		zap.Int("accepted", len(out.Update.Values)),
		zap.Int("skipped", len(result)-len(out.Update.Values)),
		zap.Int("images", len(payloads)),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return out, nil
}

func (o *Orchestrator) fail(logger *zap.Logger, out Outcome, err error) (Outcome, error) {
	logger.Warn("product enrichment failed",
		zap.Bool("retryable", worker.IsTransient(err)),
		zap.String("error", redact.Secrets(err.Error())),
	)
	return out, err
}

func validateBatch(owner string, products []product.Product) error {
	if owner == "" {
		return fmt.Errorf("%w: owner is required", enrich.ErrInvalidBatch)
	}
	for i, p := range products {
		if p.ID == "" {
			return fmt.Errorf("%w: product %d has no id", enrich.ErrInvalidBatch, i)
		}
		if err := p.Attributes.Validate(); err != nil {
			return fmt.Errorf("%w: product %s: %w", enrich.ErrInvalidBatch, p.ID, err)
		}
	}
	return nil
}
