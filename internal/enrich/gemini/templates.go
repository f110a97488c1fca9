package gemini

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tyler-sommer/stick"
)

//go:embed templates/*.twig
var templateFS embed.FS

// promptRenderer renders the agent instruction templates.
type promptRenderer struct {
	env       *stick.Env
	templates map[string]string
}

func newPromptRenderer() (*promptRenderer, error) {
	r := &promptRenderer{
		env:       stick.New(nil),
		templates: make(map[string]string),
	}
	err := fs.WalkDir(templateFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".twig") {
			return nil
		}
		content, readErr := fs.ReadFile(templateFS, path)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}
		r.templates[strings.TrimSuffix(filepath.Base(path), ".twig")] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *promptRenderer) render(tag string, vars map[string]stick.Value) (string, error) {
	tpl, ok := r.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}
	var out strings.Builder
	if err := r.env.Execute(tpl, &out, vars); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return strings.TrimSpace(out.String()), nil
}
