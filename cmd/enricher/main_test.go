package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/palantir/product-attribute-enrichment/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, version.Current) {
		t.Fatalf("expected version %q in output, got %q", version.Current, out)
	}
}

func TestRunRequiresFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "run", "--owner", "user-1")
	if err == nil || !strings.Contains(err.Error(), "input") {
		t.Fatalf("expected missing --input error, got %v", err)
	}
}

func TestRunRequiresGeminiKey(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ENRICHER_GEMINI_API_KEY", "")
	input := filepath.Join(dir, "products.yaml")
	if err := os.WriteFile(input, []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "run", "--input", input, "--owner", "user-1", "--store", filepath.Join(dir, "x.db"), "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Fatalf("expected missing API key error, got %v", err)
	}
}

func TestInvalidFlagValueIsConfigError(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "run", "--input", "x.yaml", "--owner", "u", "--log-format", "xml")
	if err == nil || !strings.Contains(err.Error(), "config error") {
		t.Fatalf("expected config error, got %v", err)
	}
}
