package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/palantir/product-attribute-enrichment/internal/product"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/core"
	"gopkg.in/yaml.v3"
)

// ReadProducts decodes a batch of products from YAML or JSON. The document is
// either a list of products or an object with a "products" list.
func ReadProducts(r io.Reader) ([]product.Product, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty products document")
		}
		return nil, fmt.Errorf("decode products: %w", err)
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}

	var products []product.Product
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&products); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Products []product.Product `yaml:"products"`
		}
		if err := doc.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
		products = wrapped.Products
	default:
		return nil, fmt.Errorf("decode products: expected a list or a mapping with %q", "products")
	}
	return products, nil
}

// ProductFile loads products from a file on disk.
type ProductFile struct {
	Path string
}

var _ core.InputAdapter[product.Product] = ProductFile{}

func (f ProductFile) Load(ctx context.Context) ([]product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fh.Close()
	}()

	products, err := ReadProducts(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return products, nil
}
