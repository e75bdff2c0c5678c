// Package testutil provides shared test helpers and mock
// implementations. This avoids duplicating mock code across test
// files.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/fetcher"
)

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// SHA256Hex hashes content the way the pipeline does.
func SHA256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// MockFetcher serves canned responses per URL and records calls.
// It implements fetcher.Fetcher.
type MockFetcher struct {
	// Content maps URL to the document body served on fetch.
	Content map[string]string

	// ETags maps URL to the validator returned with a fetch.
	ETags map[string]string

	// NotModified lists URLs answering 304 when validators are sent.
	NotModified map[string]bool

	// Errs maps URL to a forced error.
	Errs map[string]error

	// Flavors is returned from CheckFlavors as-is.
	Flavors []domain.FlavorInfo

	// Calls records every fetched URL in order.
	Calls []string

	// LastETag and LastModified capture the validators of the most
	// recent conditional fetch.
	LastETag     string
	LastModified string
}

// NewMockFetcher creates an empty mock.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Content:     make(map[string]string),
		ETags:       make(map[string]string),
		NotModified: make(map[string]bool),
		Errs:        make(map[string]error),
	}
}

// Fetch implements fetcher.Fetcher.
func (m *MockFetcher) Fetch(ctx context.Context, url string) (string, string, error) {
	res, err := m.FetchWithCache(ctx, url, "", "")
	if err != nil {
		return "", "", err
	}
	return res.Content, res.SHA256, nil
}

// FetchWithCache implements fetcher.Fetcher.
func (m *MockFetcher) FetchWithCache(ctx context.Context, url, etag, lastModified string) (*fetcher.Result, error) {
	m.Calls = append(m.Calls, url)
	m.LastETag = etag
	m.LastModified = lastModified

	if err := m.Errs[url]; err != nil {
		return nil, err
	}

	if m.NotModified[url] && (etag != "" || lastModified != "") {
		return &fetcher.Result{
			NotModified:  true,
			ETag:         etag,
			LastModified: lastModified,
			FinalURL:     url,
		}, nil
	}

	content, ok := m.Content[url]
	if !ok {
		return nil, domain.StatusErr("fetch", 404)
	}
	return &fetcher.Result{
		Content:  content,
		SHA256:   SHA256Hex(content),
		ETag:     m.ETags[url],
		FinalURL: url,
	}, nil
}

// HeadMetadata implements fetcher.Fetcher.
func (m *MockFetcher) HeadMetadata(ctx context.Context, url string) (*fetcher.HeadInfo, error) {
	if err := m.Errs[url]; err != nil {
		return nil, err
	}
	if content, ok := m.Content[url]; ok {
		return &fetcher.HeadInfo{Status: 200, ContentLength: int64(len(content))}, nil
	}
	return &fetcher.HeadInfo{Status: 404, ContentLength: -1}, nil
}

// CheckFlavors implements fetcher.Fetcher.
func (m *MockFetcher) CheckFlavors(ctx context.Context, url string) ([]domain.FlavorInfo, error) {
	return m.Flavors, nil
}
