// Package resource fetches page bytes and subresources by URI.
package resource

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const userAgent = "vireo/1.0 (compatible; Go)"

// Fetcher retrieves a resource. Relative URIs are resolved against the
// fetcher's base.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (body []byte, contentType string, err error)
}

// IsNetworkURL reports whether s looks like an HTTP or HTTPS URL.
func IsNetworkURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ResolveURL resolves a possibly-relative URI against a base URL. An
// unparseable input is returned as-is.
func ResolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// HTTPFetcher fetches over HTTP/HTTPS with a shared timeout client.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

func NewHTTPFetcher(base string) *HTTPFetcher {
	return &HTTPFetcher{
		base:   base,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	resolved := uri
	if !IsNetworkURL(uri) && f.base != "" {
		resolved = ResolveURL(f.base, uri)
	}
	if !IsNetworkURL(resolved) {
		return nil, "", fmt.Errorf("resource: cannot fetch non-network URI %q", resolved)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, "", fmt.Errorf("resource: creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("resource: fetching %s: %w", resolved, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("resource: HTTP %d fetching %s", resp.StatusCode, resolved)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("resource: reading body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// FileFetcher serves local files, resolving relative paths against a base
// directory. Content type comes from the file extension.
type FileFetcher struct {
	base string
}

func NewFileFetcher(baseDir string) *FileFetcher {
	return &FileFetcher{base: baseDir}
}

func (f *FileFetcher) Fetch(_ context.Context, uri string) ([]byte, string, error) {
	if IsNetworkURL(uri) {
		return nil, "", fmt.Errorf("resource: file fetcher cannot load %q", uri)
	}
	path := uri
	if !filepath.IsAbs(path) && f.base != "" {
		path = filepath.Join(f.base, path)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("resource: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	return body, ct, nil
}

// ForTarget picks a fetcher for a page location: HTTP for network URLs,
// the file fetcher rooted at the page's directory otherwise.
func ForTarget(target string) Fetcher {
	if IsNetworkURL(target) {
		return NewHTTPFetcher(target)
	}
	return NewFileFetcher(filepath.Dir(target))
}
