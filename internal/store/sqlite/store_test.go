package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/palantir/product-attribute-enrichment/internal/enrich"
	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/palantir/product-attribute-enrichment/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleProduct() product.Product {
	return product.Product{
		Name:   "Widget",
		Brand:  "Acme",
		Images: []string{"https://example.com/w.png"},
		Attributes: product.AttributeSet{
			{Name: "weight", Label: "Weight", Type: "number", Unit: "kg"},
			{Name: "color", Label: "Color", Type: "multiple_values"},
			{Name: "material", Label: "Material", Type: "short_text", Value: product.Text("steel")},
		},
	}
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.Insert(ctx, "user-1", sampleProduct())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = s.Insert(ctx, "user-2", sampleProduct())
	require.NoError(t, err)

	got, err := s.Find(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "Widget", got[0].Name)
	assert.Equal(t, []string{"weight", "color", "material"}, got[0].Attributes.Names())

	none, err := s.Find(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindOne_ScopedByOwner(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.Insert(ctx, "user-1", sampleProduct())
	require.NoError(t, err)

	p, err := s.FindOne(ctx, id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.Brand)

	_, err = s.FindOne(ctx, id, "user-2")
	assert.ErrorIs(t, err, enrich.ErrProductNotFound)
}

func TestUpdateOne(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.Insert(ctx, "user-1", sampleProduct())
	require.NoError(t, err)

	n, err := s.UpdateOne(ctx, id, "user-1", enrich.Update{
		Values: map[string]product.Value{
			"weight": product.Text("5kg"),
			"color":  product.List("red", "blue"),
		},
		Enriched: true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	p, err := s.FindOne(ctx, id, "user-1")
	require.NoError(t, err)
	assert.True(t, p.IsEnriched)

	weight, _ := p.Attributes.Get("weight")
	assert.Equal(t, product.Text("5kg"), weight.Value)
	assert.Equal(t, "kg", weight.Unit)
	color, _ := p.Attributes.Get("color")
	assert.Equal(t, product.List("red", "blue"), color.Value)
	material, _ := p.Attributes.Get("material")
	assert.Equal(t, product.Text("steel"), material.Value)
	assert.Equal(t, []string{"weight", "color", "material"}, p.Attributes.Names())
}

func TestUpdateOne_OtherOwnerModifiesNothing(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.Insert(ctx, "user-1", sampleProduct())
	require.NoError(t, err)

	n, err := s.UpdateOne(ctx, id, "intruder", enrich.Update{
		Values:   map[string]product.Value{"weight": product.Text("99kg")},
		Enriched: true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	p, err := s.FindOne(ctx, id, "user-1")
	require.NoError(t, err)
	assert.False(t, p.IsEnriched)
	weight, _ := p.Attributes.Get("weight")
	assert.True(t, weight.Value.IsZero())
}

func TestUpdateOne_OnlyFlag(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	id, err := s.Insert(ctx, "user-1", sampleProduct())
	require.NoError(t, err)

	n, err := s.UpdateOne(ctx, id, "user-1", enrich.Update{Enriched: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	p, err := s.FindOne(ctx, id, "user-1")
	require.NoError(t, err)
	assert.True(t, p.IsEnriched)
}

func TestUpdateOne_RejectsQuotedNames(t *testing.T) {
	s := openStore(t)
	_, err := s.UpdateOne(context.Background(), "id", "user-1", enrich.Update{
		Values: map[string]product.Value{`we"ight`: product.Text("1")},
	})
	assert.Error(t, err)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	p := sampleProduct()
	p.ID = "sku-1"
	require.NoError(t, s.Upsert(ctx, "user-1", p))

	p.Name = "Widget Pro"
	require.NoError(t, s.Upsert(ctx, "user-1", p))

	got, err := s.FindOne(ctx, "sku-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Widget Pro", got.Name)

	err = s.Upsert(ctx, "user-2", p)
	assert.ErrorIs(t, err, enrich.ErrProductNotFound)
}

func TestDeleteMany(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	a, err := s.Insert(ctx, "user-1", sampleProduct())
	require.NoError(t, err)
	b, err := s.Insert(ctx, "user-1", sampleProduct())
	require.NoError(t, err)
	c, err := s.Insert(ctx, "user-2", sampleProduct())
	require.NoError(t, err)

	n, err := s.DeleteMany(ctx, []string{a, b, c}, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = s.FindOne(ctx, c, "user-2")
	assert.NoError(t, err)

	n, err = s.DeleteMany(ctx, nil, "user-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "enricher.db")

	s, err := sqlite.Open(ctx, path, nil)
	require.NoError(t, err)
	id, err := s.Insert(ctx, "user-1", sampleProduct())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlite.Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.FindOne(ctx, id, "user-1")
	assert.NoError(t, err)
}
