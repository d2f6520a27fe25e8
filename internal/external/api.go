// Package external fetches source documents from the listings HTTP API.
package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lllllllleong/listingflow/internal/models"
	"github.com/Lllllllleong/listingflow/internal/pipeline"
)

// ErrExternalAPI is the category of every APIFetcher failure.
var ErrExternalAPI = errors.New("external api request failed")

// ExternalAPIError reports a transport failure or a non-2xx response.
// StatusCode is 0 when no response was received.
type ExternalAPIError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ExternalAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("external api %s returned %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("external api %s: %v", e.URL, e.Err)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

// Is reports the error as both an external API failure and a fetch-stage failure.
func (e *ExternalAPIError) Is(target error) bool {
	return target == ErrExternalAPI || target == pipeline.ErrFetch
}

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// APIFetcher resolves descriptor keys against a base URL.
type APIFetcher struct {
	base   *url.URL
	client *http.Client
}

// NewAPIFetcher creates an APIFetcher. A zero timeout leaves the platform
// deadline on ctx as the only limit.
func NewAPIFetcher(baseURL string, timeout time.Duration) (*APIFetcher, error) {
	if baseURL == "" {
		return nil, errors.New("external api base url must be set")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid external api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid external api base url %q: scheme must be http or https", baseURL)
	}
	return &APIFetcher{base: u, client: &http.Client{Timeout: timeout}}, nil
}

// ErrUnsafeKey is returned for keys with dot segments, which would resolve
// outside the base URL.
var ErrUnsafeKey = errors.New("key contains a relative path segment")

// URL returns the address the descriptor is fetched from. Keys never climb
// above the base path.
func (f *APIFetcher) URL(src models.Descriptor) (string, error) {
	segments := strings.Split(strings.TrimPrefix(src.Key, "/"), "/")
	for _, seg := range segments {
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrUnsafeKey, src.Key)
		}
	}
	return f.base.JoinPath(segments...).String(), nil
}

// Fetch issues one GET for the descriptor's key.
func (f *APIFetcher) Fetch(ctx context.Context, src models.Descriptor) (pipeline.RawDocument, error) {
	target, err := f.URL(src)
	if err != nil {
		return pipeline.RawDocument{}, &ExternalAPIError{URL: f.base.String(), Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return pipeline.RawDocument{}, &ExternalAPIError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return pipeline.RawDocument{}, &ExternalAPIError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return pipeline.RawDocument{}, &ExternalAPIError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.RawDocument{}, &ExternalAPIError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	return pipeline.RawDocument{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}
