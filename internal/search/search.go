// Package search queries the Google Programmable Search (Custom Search JSON) API
// for text snippets that may overlap with generated content.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultTimeout bounds a single search request.
const DefaultTimeout = 10 * time.Second

// Config holds the credentials and limits for the search client.
type Config struct {
	APIKey         string
	SearchEngineID string
	Timeout        time.Duration
	// Endpoint overrides the API base URL. Used in tests.
	Endpoint string
}

// Error describes a failed search request.
type Error struct {
	Query      string
	StatusCode int // 0 when no HTTP response was received
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search %q failed with status %d: %v", e.Query, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// GoogleSearcher returns result snippets from a Custom Search engine.
type GoogleSearcher struct {
	svc     *customsearch.Service
	cx      string
	timeout time.Duration
}

// NewGoogleSearcher creates a searcher bound to one search engine ID.
func NewGoogleSearcher(ctx context.Context, cfg Config) (*GoogleSearcher, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("search API key is required")
	}
	if cfg.SearchEngineID == "" {
		return nil, fmt.Errorf("search engine ID is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &GoogleSearcher{
		svc:     svc,
		cx:      cfg.SearchEngineID,
		timeout: timeout,
	}, nil
}

// Snippets runs one search and returns the non-empty snippets in result order.
// Any transport error, non-2xx status or timeout is returned as *Error.
func (g *GoogleSearcher) Snippets(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.svc.Cse.List().Cx(g.cx).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(query, err)
	}

	return snippetsFrom(resp), nil
}

// snippetsFrom extracts snippets from a response, dropping items without one.
func snippetsFrom(resp *customsearch.Search) []string {
	if resp == nil {
		return nil
	}

	snippets := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil {
			continue
		}
		if strings.TrimSpace(item.Snippet) == "" {
			continue
		}
		snippets = append(snippets, item.Snippet)
	}
	return snippets
}

func wrapError(query string, err error) *Error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &Error{Query: query, StatusCode: apiErr.Code, Cause: err}
	}
	return &Error{Query: query, Cause: err}
}
