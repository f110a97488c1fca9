package consumer

import (
	"context"
	"strings"
	"testing"

	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/core"
	localio "github.com/palantir/product-attribute-enrichment/pkg/pipeline/io/local"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/redact"
	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/worker"
)

func TestPublicPackagesCompile(t *testing.T) {
	t.Parallel()

	_ = core.TransientError{}
	if got := redact.Secrets("https://x.test/?key=abc"); strings.Contains(got, "abc") {
		t.Fatalf("expected key to be redacted: %q", got)
	}

	_, err := worker.ProcessAll(context.Background(), []string{"x"}, func(_ context.Context, in string) (string, error) {
		return in, nil
	}, worker.Options{Workers: 1})
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}

	products, err := localio.ReadProducts(strings.NewReader("- id: a\n  product_name: A\n"))
	if err != nil {
		t.Fatalf("ReadProducts failed: %v", err)
	}
	if len(products) != 1 || products[0].ID != "a" {
		t.Fatalf("unexpected products: %#v", products)
	}
}
