// Package app wires configuration, storage, Gemini agents and the batch
// orchestrator together for the CLI and HTTP entry points.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/palantir/product-attribute-enrichment/internal/config"
	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/enrich/evidence"
	"github.com/palantir/product-attribute-enrichment/internal/enrich/gemini"
	"github.com/palantir/product-attribute-enrichment/internal/pipeline"
	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/palantir/product-attribute-enrichment/internal/store/sqlite"
	localio "github.com/palantir/product-attribute-enrichment/pkg/pipeline/io/local"
	"go.uber.org/zap"
)

// Services are the long-lived collaborators shared by every entry point.
type Services struct {
	Store    *sqlite.Store
	Enricher *Enricher
	Logger   *zap.Logger
}

// NewServices opens the product store and connects to Gemini.
func NewServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, err
	}
	store, err := sqlite.Open(ctx, cfg.Store.Path, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	client, err := gemini.New(ctx, gemini.Config{
		APIKey:          cfg.Gemini.APIKey,
		BaseURL:         cfg.Gemini.BaseURL,
		SearchModel:     cfg.Gemini.SearchModel,
		ExtractionModel: cfg.Gemini.ExtractionModel,
		CaptureAudit:    cfg.Gemini.CaptureAudit,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("gemini: %w", err)
	}
	svc, err := Wire(cfg, store, client.SearchAgent(), client.ExtractionAgent(), logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// Wire assembles Services around already-constructed agents and store.
func Wire(cfg *config.Config, store *sqlite.Store, search enrich.SearchAgent, extract enrich.ExtractionAgent, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	images := evidence.New(evidence.Options{
		Concurrency:  cfg.Pipeline.ImageConcurrency,
		FetchTimeout: cfg.Pipeline.ImageTimeout,
		MaxBytes:     cfg.Pipeline.MaxImageBytes,
		Logger:       logger.Named("evidence"),
	})
	enricher, err := NewEnricher(pipeline.Deps{
		Images:  images,
		Search:  search,
		Extract: extract,
		Store:   store,
		Logger:  logger.Named("pipeline"),
	}, pipeline.Options{
		Workers:        cfg.Pipeline.Workers,
		MaxRetries:     cfg.Pipeline.MaxRetries,
		CallTimeout:    cfg.Pipeline.RequestTimeout,
		ProductTimeout: cfg.Pipeline.ProductTimeout,
		RateLimitRPS:   cfg.Pipeline.RateLimitRPS,
	}, logger.Named("agent"))
	if err != nil {
		return nil, err
	}
	return &Services{Store: store, Enricher: enricher, Logger: logger}, nil
}

// Enricher runs batches through a pipeline.Orchestrator. Each batch gets its
// own tracer, so attempt numbers are scoped to one run.
type Enricher struct {
	deps        pipeline.Deps
	opts        pipeline.Options
	traceLogger *zap.Logger
}

func NewEnricher(deps pipeline.Deps, opts pipeline.Options, traceLogger *zap.Logger) (*Enricher, error) {
	if _, err := pipeline.New(deps, opts); err != nil {
		return nil, err
	}
	if traceLogger == nil {
		traceLogger = zap.NewNop()
	}
	return &Enricher{deps: deps, opts: opts, traceLogger: traceLogger}, nil
}

func (e *Enricher) EnrichBatch(ctx context.Context, owner string, products []product.Product) (pipeline.BatchReport, error) {
	t := newTracer(e.traceLogger, e.opts.MaxRetries, e.opts.CallTimeout)
	deps := e.deps
	deps.Search = tracedSearch{next: e.deps.Search, t: t}
	deps.Extract = tracedExtract{next: e.deps.Extract, t: t}
	orch, err := pipeline.New(deps, e.opts)
	if err != nil {
		return pipeline.BatchReport{}, err
	}
	return orch.EnrichBatch(ctx, owner, products)
}

func (s *Services) Close() error {
	return s.Store.Close()
}

type RunOptions struct {
	InputPath  string
	OutputPath string
	Owner      string
	// Force re-enriches products the store already marks as enriched.
	Force bool
}

// RunLocal loads products from a file, stores them for the owner, enriches the
// ones that still need it and writes the JSON report to OutputPath (or stdout
// when OutputPath is empty).
func RunLocal(ctx context.Context, svc *Services, opts RunOptions, stdout io.Writer) (pipeline.BatchReport, error) {
	if opts.Owner == "" {
		return pipeline.BatchReport{}, errors.New("owner is required")
	}
	logger := svc.Logger.With(zap.String("owner", opts.Owner))

	readStart := time.Now()
	products, err := localio.ProductFile{Path: opts.InputPath}.Load(ctx)
	if err != nil {
		return pipeline.BatchReport{}, err
	}
	logger.Info("loaded products",
		zap.String("input", opts.InputPath),
		zap.Int("products", len(products)),
		zap.Duration("duration", time.Since(readStart).Round(time.Millisecond)),
	)

	pending, cached, err := stageProducts(ctx, svc.Store, opts.Owner, products, opts.Force)
	if err != nil {
		return pipeline.BatchReport{}, err
	}
	logger.Info("incremental plan",
		zap.Int("input_products", len(products)),
		zap.Int("cached_products", cached),
		zap.Int("products_to_enrich", len(pending)),
	)

	report, err := svc.Enricher.EnrichBatch(ctx, opts.Owner, pending)
	if err != nil {
		return pipeline.BatchReport{}, err
	}

	if err := writeReport(opts.OutputPath, stdout, report); err != nil {
		return report, err
	}
	return report, nil
}

// stageProducts upserts every product for owner and returns those that still
// need enrichment. Products without an id are inserted under a fresh one.
func stageProducts(ctx context.Context, store *sqlite.Store, owner string, products []product.Product, force bool) ([]product.Product, int, error) {
	pending := make([]product.Product, 0, len(products))
	cached := 0
	for i, p := range products {
		if p.ID == "" {
			id, err := store.Insert(ctx, owner, p)
			if err != nil {
				return nil, 0, fmt.Errorf("product %d: %w", i, err)
			}
			p.ID = id
			pending = append(pending, p)
			continue
		}

		if !force {
			existing, err := store.FindOne(ctx, p.ID, owner)
			switch {
			case err == nil && existing.IsEnriched:
				cached++
				continue
			case err != nil && !errors.Is(err, enrich.ErrProductNotFound):
				return nil, 0, err
			}
		}
		if err := store.Upsert(ctx, owner, p); err != nil {
			return nil, 0, err
		}
		pending = append(pending, p)
	}
	return pending, cached, nil
}

func writeReport(path string, stdout io.Writer, report pipeline.BatchReport) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "" {
		_, err := stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
