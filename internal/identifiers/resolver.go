// Package identifiers answers existence questions about records and
// providers against the identifier authority that mints cloud ids.
// Record metadata writes consult it before creating local rows.
package identifiers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Resolver is the contract for identifier existence checks.
type Resolver interface {
	// RecordExists reports whether a cloud id is known to the
	// identifier authority.
	RecordExists(ctx context.Context, cloudID string) (bool, error)

	// ProviderExists reports whether a provider id is known to the
	// identifier authority.
	ProviderExists(ctx context.Context, providerID string) (bool, error)
}

// HTTPResolver queries a remote identifier service over HTTP.
type HTTPResolver struct {
	baseURL    string
	httpClient *http.Client
	retry      *retrier
}

// NewHTTPResolver creates a resolver against the given base URL.
func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		retry:      newRetrier(defaultRetryConfig()),
	}
}

// RecordExists probes the record endpoint for the cloud id.
func (r *HTTPResolver) RecordExists(ctx context.Context, cloudID string) (bool, error) {
	return r.exists(ctx, "/cloudIds/"+url.PathEscape(cloudID))
}

// ProviderExists probes the provider endpoint for the provider id.
func (r *HTTPResolver) ProviderExists(ctx context.Context, providerID string) (bool, error) {
	return r.exists(ctx, "/data-providers/"+url.PathEscape(providerID))
}

func (r *HTTPResolver) exists(ctx context.Context, path string) (bool, error) {
	var found bool
	err := r.retry.do(ctx, "check identifier", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			found = true
			return nil
		case resp.StatusCode == http.StatusNotFound:
			found = false
			return nil
		default:
			return &statusError{status: resp.StatusCode}
		}
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("identifier service returned status %d", e.status)
}

// StaticResolver answers existence checks from fixed sets. Used in
// tests and in standalone deployments without an identifier service;
// nil sets mean "everything exists".
type StaticResolver struct {
	Records   map[string]bool
	Providers map[string]bool
}

func (r *StaticResolver) RecordExists(ctx context.Context, cloudID string) (bool, error) {
	if r.Records == nil {
		return true, nil
	}
	return r.Records[cloudID], nil
}

func (r *StaticResolver) ProviderExists(ctx context.Context, providerID string) (bool, error) {
	if r.Providers == nil {
		return true, nil
	}
	return r.Providers[providerID], nil
}

var (
	_ Resolver = (*HTTPResolver)(nil)
	_ Resolver = (*StaticResolver)(nil)
)
