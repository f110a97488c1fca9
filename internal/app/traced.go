package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/redact"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/worker"
	"go.uber.org/zap"
)

// tracer logs one request/response pair per external agent call, numbering
// attempts per product so retries are visible in the log stream.
type tracer struct {
	logger         *zap.Logger
	maxRetries     int
	requestTimeout time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

func newTracer(logger *zap.Logger, maxRetries int, requestTimeout time.Duration) *tracer {
	return &tracer{
		logger:         logger,
		maxRetries:     maxRetries,
		requestTimeout: requestTimeout,
		attempts:       make(map[string]int),
	}
}

func trace[T any](ctx context.Context, t *tracer, op, productID string, summarize func(T) []zap.Field, call func(context.Context) (T, error)) (T, error) {
	attempt := t.nextAttempt(op + "/" + productID)
	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	log := t.logger.With(zap.String("op", op), zap.String("product_id", productID), zap.Int("attempt", attempt))
	log.Debug(op+" request", zap.Duration("timeout", t.requestTimeout), zap.String("deadline_in", deadlineIn))

	start := time.Now()
	out, err := call(ctx)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		budget := maxRetryBudgetForErr(t.maxRetries, err)
		retryable := worker.IsTransient(err)
		log.Warn(op+" response",
			zap.Duration("duration", elapsed),
			zap.String("status", "error"),
			zap.Bool("retryable", retryable),
			zap.Bool("will_retry", retryable && attempt <= budget),
			zap.Int("max_extra_retries", budget),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return out, err
	}

	fields := append([]zap.Field{zap.Duration("duration", elapsed), zap.String("status", "ok")}, summarize(out)...)
	log.Info(op+" response", fields...)
	return out, nil
}

func (t *tracer) nextAttempt(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key]
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxRetryBudgetForErr(defaultMax int, err error) int {
	if defaultMax < 0 {
		defaultMax = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		capMax := capErr.MaxExtraRetries()
		if capMax < 0 {
			capMax = 0
		}
		if capMax < defaultMax {
			return capMax
		}
	}
	return defaultMax
}

type tracedSearch struct {
	next enrich.SearchAgent
	t    *tracer
}

func (s tracedSearch) Search(ctx context.Context, req enrich.EvidenceRequest) (enrich.SearchResult, error) {
	return trace(ctx, s.t, "search", req.ProductID,
		func(r enrich.SearchResult) []zap.Field {
			return []zap.Field{
				zap.Int("evidence_chars", len(r.Text)),
				zap.Strings("sources", r.Sources),
				zap.Strings("web_search_queries", r.WebSearchQueries),
			}
		},
		func(ctx context.Context) (enrich.SearchResult, error) { return s.next.Search(ctx, req) },
	)
}

type tracedExtract struct {
	next enrich.ExtractionAgent
	t    *tracer
}

func (e tracedExtract) Extract(ctx context.Context, req enrich.ExtractionRequest) (string, error) {
	return trace(ctx, e.t, "extract", req.ProductID,
		func(raw string) []zap.Field {
			return []zap.Field{
				zap.Int("images", len(req.Images)),
				zap.String("response", redact.Truncate(raw, 512)),
			}
		},
		func(ctx context.Context) (string, error) { return e.next.Extract(ctx, req) },
	)
}
