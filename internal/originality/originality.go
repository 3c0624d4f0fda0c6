// Package originality scores generated text by searching the web for each of its
// sentences and counting how many closely match a returned snippet.
package originality

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/content-guard/internal/similarity"
)

const (
	// DefaultThreshold is the similarity ratio above which a snippet counts as a copy.
	DefaultThreshold = 0.8
	// DefaultMinFragmentLength is the trimmed rune length below which a fragment is not searched.
	DefaultMinFragmentLength = 20
	// DefaultQueryPrefixLength is the number of leading runes of a fragment sent as the query.
	DefaultQueryPrefixLength = 50
)

// Searcher returns the result snippets for a web search query.
type Searcher interface {
	Snippets(ctx context.Context, query string) ([]string, error)
}

// Recorder receives search outcomes for metrics.
type Recorder interface {
	ObserveSearch(ok bool)
}

// Options configures a Checker. Zero values select the defaults.
type Options struct {
	Threshold         float64
	MinFragmentLength int
	QueryPrefixLength int
	Logger            *slog.Logger
	Metrics           Recorder
}

// FragmentResult records how one fragment was scored.
type FragmentResult struct {
	Text           string  `json:"text"`
	Query          string  `json:"query,omitempty"`
	Skipped        bool    `json:"skipped"`
	SearchFailed   bool    `json:"search_failed,omitempty"`
	Plagiarized    bool    `json:"plagiarized"`
	BestRatio      float64 `json:"best_ratio"`
	MatchedSnippet string  `json:"matched_snippet,omitempty"`
}

// Report is the outcome of an originality check.
type Report struct {
	// Score is the percentage of fragments flagged as copied, in [0, 100].
	Score float64 `json:"score"`
	// Total counts every fragment produced by the split, including short ones.
	Total int `json:"total"`
	// Checked counts fragments long enough to be searched.
	Checked        int              `json:"checked"`
	Plagiarized    int              `json:"plagiarized"`
	SearchFailures int              `json:"search_failures"`
	Fragments      []FragmentResult `json:"fragments"`
}

// Checker computes plagiarism scores using a Searcher.
type Checker struct {
	searcher  Searcher
	threshold float64
	minLen    int
	prefixLen int
	logger    *slog.Logger
	metrics   Recorder
}

// NewChecker creates a Checker backed by searcher.
func NewChecker(searcher Searcher, opts Options) *Checker {
	c := &Checker{
		searcher:  searcher,
		threshold: opts.Threshold,
		minLen:    opts.MinFragmentLength,
		prefixLen: opts.QueryPrefixLength,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if c.threshold <= 0 {
		c.threshold = DefaultThreshold
	}
	if c.minLen <= 0 {
		c.minLen = DefaultMinFragmentLength
	}
	if c.prefixLen <= 0 {
		c.prefixLen = DefaultQueryPrefixLength
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Threshold returns the similarity ratio above which a snippet counts as a copy.
func (c *Checker) Threshold() float64 {
	return c.threshold
}

// SplitFragments splits text on every period. Empty and whitespace-only pieces
// are kept, so "a. b." yields three fragments.
func SplitFragments(text string) []string {
	return strings.Split(text, ".")
}

// Check scores text. The denominator is the number of fragments from
// SplitFragments, while only fragments of at least MinFragmentLength trimmed runes
// can be flagged. Fragments are searched one at a time; a failed search counts as
// no match. The only error returned is ctx.Err() when ctx is cancelled between
// queries.
func (c *Checker) Check(ctx context.Context, text string) (*Report, error) {
	fragments := SplitFragments(text)
	report := &Report{
		Total:     len(fragments),
		Fragments: make([]FragmentResult, 0, len(fragments)),
	}

	for _, frag := range fragments {
		result := FragmentResult{Text: frag}

		if utf8.RuneCountInString(strings.TrimSpace(frag)) < c.minLen {
			result.Skipped = true
			report.Fragments = append(report.Fragments, result)
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report.Checked++
		result.Query = prefix(frag, c.prefixLen)

		snippets, err := c.searcher.Snippets(ctx, result.Query)
		if c.metrics != nil {
			c.metrics.ObserveSearch(err == nil)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn("search failed, treating fragment as original", "query", result.Query, "error", err)
			report.SearchFailures++
			result.SearchFailed = true
			snippets = nil
		}

		c.match(&result, snippets)
		if result.Plagiarized {
			report.Plagiarized++
		}
		report.Fragments = append(report.Fragments, result)
	}

	report.Score = score(report.Plagiarized, report.Total)
	return report, nil
}

// match compares the fragment with each snippet until one exceeds the threshold.
func (c *Checker) match(result *FragmentResult, snippets []string) {
	fragment := strings.ToLower(result.Text)
	for _, snip := range snippets {
		ratio := similarity.Ratio(fragment, strings.ToLower(snip))
		if ratio > result.BestRatio {
			result.BestRatio = ratio
		}
		if ratio > c.threshold {
			result.Plagiarized = true
			result.MatchedSnippet = snip
			return
		}
	}
}

func score(plagiarized, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(plagiarized) / float64(total) * 100
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
