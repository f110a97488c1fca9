// Package evidence resolves product image references into in-memory payloads.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultObjectSchemes are passed through to the model as opaque URIs.
var DefaultObjectSchemes = []string{"gs://"}

type Options struct {
	HTTPClient *http.Client

	// Concurrency bounds parallel resolution within one product.
	Concurrency int
	// FetchTimeout bounds each remote fetch.
	FetchTimeout time.Duration
	// MaxBytes caps the size of a single image. Set to <=0 to disable.
	MaxBytes int64

	ObjectSchemes []string
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 20 * time.Second
	}
	if o.ObjectSchemes == nil {
		o.ObjectSchemes = DefaultObjectSchemes
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Gatherer implements enrich.ImageResolver.
type Gatherer struct {
	opts Options
}

var _ enrich.ImageResolver = (*Gatherer)(nil)

func New(opts Options) *Gatherer {
	return &Gatherer{opts: opts.withDefaults()}
}

type slot struct {
	payload *enrich.ImagePayload
	err     *enrich.ResolutionError
}

// Resolve resolves refs concurrently and returns payloads in reference order.
// Unresolvable references are skipped and reported; only cancellation of ctx
// itself is returned as an error.
func (g *Gatherer) Resolve(ctx context.Context, refs []string) ([]enrich.ImagePayload, []*enrich.ResolutionError, error) {
	if len(refs) == 0 {
		return nil, nil, nil
	}

	slots := make([]slot, len(refs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Concurrency)
	for i, ref := range refs {
		eg.Go(func() error {
			p, err := g.resolveOne(egCtx, ref)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slots[i].err = &enrich.ResolutionError{Ref: ref, Err: err}
				return nil
			}
			slots[i].payload = &p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	payloads := make([]enrich.ImagePayload, 0, len(refs))
	var failures []*enrich.ResolutionError
	for _, s := range slots {
		switch {
		case s.payload != nil:
			payloads = append(payloads, *s.payload)
		case s.err != nil:
			g.opts.Logger.Warn("image resolution failed", zap.String("ref", s.err.Ref), zap.Error(s.err.Err))
			failures = append(failures, s.err)
		}
	}
	return payloads, failures, nil
}

func (g *Gatherer) resolveOne(ctx context.Context, ref string) (enrich.ImagePayload, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return enrich.ImagePayload{}, errors.New("empty image reference")
	}
	mime := MIMEType(ref)

	for _, scheme := range g.opts.ObjectSchemes {
		if strings.HasPrefix(ref, scheme) {
			return enrich.ImagePayload{Ref: ref, MIMEType: mime, URI: ref}, nil
		}
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		data, err := g.fetch(ctx, ref)
		if err != nil {
			return enrich.ImagePayload{}, err
		}
		return enrich.ImagePayload{Ref: ref, MIMEType: mime, Data: data}, nil
	}

	data, err := g.readLocal(ref)
	if err != nil {
		return enrich.ImagePayload{}, err
	}
	return enrich.ImagePayload{Ref: ref, MIMEType: mime, Data: data}, nil
}

func (g *Gatherer) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, newFetchError(url, resp, body)
	}
	return g.readLimited(resp.Body)
}

func (g *Gatherer) readLocal(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return g.readLimited(f)
}

func (g *Gatherer) readLimited(r io.Reader) ([]byte, error) {
	if g.opts.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, g.opts.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > g.opts.MaxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", g.opts.MaxBytes)
	}
	return b, nil
}
