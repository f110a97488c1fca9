package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/palantir/product-attribute-enrichment/internal/app"
	"github.com/palantir/product-attribute-enrichment/internal/config"
	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSearch struct{}

func (stubSearch) Search(_ context.Context, req enrich.EvidenceRequest) (enrich.SearchResult, error) {
	return enrich.SearchResult{Text: req.Name + " by " + req.Brand + " weighs 5kg"}, nil
}

type stubExtract struct {
	mu    sync.Mutex
	calls int
}

func (s *stubExtract) Extract(_ context.Context, req enrich.ExtractionRequest) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return "Sure!\n```json\n{\"weight\": \"5kg\", \"color\": \"not found\"}\n```", nil
}

func newServices(t *testing.T, extract enrich.ExtractionAgent) *app.Services {
	t.Helper()
	t.Chdir(t.TempDir())

	v := config.New("")
	v.Set("store.path", ":memory:")
	cfg, err := config.Load(v)
	require.NoError(t, err)

	store, err := sqlite.Open(context.Background(), cfg.Store.Path, nil)
	require.NoError(t, err)
	svc, err := app.Wire(cfg, store, stubSearch{}, extract, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

const productsYAML = `
products:
  - id: sku-1
    product_name: Widget
    brand: Acme
    attributes:
      weight: {type: number, unit: kg}
      color: {type: short_text, value: blue}
  - product_name: Gadget
    brand: Acme
    attributes:
      weight: {type: number, unit: kg}
`

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(productsYAML), 0o600))
	return path
}

func TestRunLocal(t *testing.T) {
	ctx := context.Background()
	extract := &stubExtract{}
	svc := newServices(t, extract)
	input := writeInput(t)
	output := filepath.Join(t.TempDir(), "report.json")

	report, err := app.RunLocal(ctx, svc, app.RunOptions{InputPath: input, OutputPath: output, Owner: "user-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 2, extract.calls)

	b, err := os.ReadFile(output)
	require.NoError(t, err)
	var got struct {
		Message         string           `json:"message"`
		EnrichedResults []map[string]any `json:"enriched_results"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Enriched 2 product(s)", got.Message)
	require.Len(t, got.EnrichedResults, 2)
	assert.Equal(t, "sku-1", got.EnrichedResults[0]["product_id"])
	assert.NotContains(t, got.EnrichedResults[0], "error")

	p, err := svc.Store.FindOne(ctx, "sku-1", "user-1")
	require.NoError(t, err)
	assert.True(t, p.IsEnriched)
	weight, _ := p.Attributes.Get("weight")
	assert.Equal(t, "5kg", weight.Value.String())
	color, _ := p.Attributes.Get("color")
	assert.Equal(t, "blue", color.Value.String())

	all, err := svc.Store.Find(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunLocal_SkipsEnrichedUnlessForced(t *testing.T) {
	ctx := context.Background()
	extract := &stubExtract{}
	svc := newServices(t, extract)
	input := writeInput(t)

	_, err := app.RunLocal(ctx, svc, app.RunOptions{InputPath: input, Owner: "user-1"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, 2, extract.calls)

	// sku-1 is cached; the id-less product is inserted again as a new row.
	var stdout bytes.Buffer
	report, err := app.RunLocal(ctx, svc, app.RunOptions{InputPath: input, Owner: "user-1"}, &stdout)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 3, extract.calls)
	assert.Contains(t, stdout.String(), `"enriched_results"`)

	report, err = app.RunLocal(ctx, svc, app.RunOptions{InputPath: input, Owner: "user-1", Force: true}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
}

func TestRunLocal_RequiresOwner(t *testing.T) {
	svc := newServices(t, &stubExtract{})
	_, err := app.RunLocal(context.Background(), svc, app.RunOptions{InputPath: writeInput(t)}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunLocal_ForeignProductIsRejected(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t, &stubExtract{})
	input := writeInput(t)

	_, err := app.RunLocal(ctx, svc, app.RunOptions{InputPath: input, Owner: "user-1"}, &bytes.Buffer{})
	require.NoError(t, err)

	_, err = app.RunLocal(ctx, svc, app.RunOptions{InputPath: input, Owner: "user-2"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, enrich.ErrProductNotFound)
}
