package evidence

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/palantir/product-attribute-enrichment/pkg/pipeline/redact"
)

// FetchError is a sanitized summary of a non-2xx image fetch.
//
// Important: do not include raw response bodies here (can leak tokens in signed URLs).
type FetchError struct {
	URL        string
	StatusCode int
	Status     string

	// Snippet is a redacted, truncated hint of the response body.
	Snippet string
}

func (e *FetchError) Error() string {
	if e == nil {
		return "image fetch error"
	}
	parts := []string{
		fmt.Sprintf("fetch image failed: url=%s status=%s", redact.Secrets(stripQuery(e.URL)), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

func newFetchError(url string, resp *http.Response, body []byte) error {
	e := &FetchError{URL: url}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Status = resp.Status
	}
	e.Snippet = redactAndTruncate(body)
	return e
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: error pages can be large and may echo request data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
