// Package generation drives content generation: it builds prompts, calls the
// language model, scores each draft for originality and retries until a draft is
// accepted or the attempt budget runs out.
package generation

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/content-guard/internal/llm"
	"github.com/jonathan/content-guard/internal/originality"
)

// ContentType is the kind of content requested.
type ContentType string

// Supported content types.
const (
	BlogPost           ContentType = "BlogPost"
	SocialMedia        ContentType = "SocialMedia"
	BlogArticle        ContentType = "BlogArticle"
	ProductDescription ContentType = "ProductDescription"
)

// ContentTypes lists the supported content types in display order.
var ContentTypes = []ContentType{BlogPost, SocialMedia, BlogArticle, ProductDescription}

var contentTypeLabels = map[ContentType]string{
	BlogPost:           "BlogPost",
	SocialMedia:        "Social Media",
	BlogArticle:        "Blog-Articles",
	ProductDescription: "Product-Description",
}

// Label returns the human-readable name used in prompts.
func (c ContentType) Label() string {
	if label, ok := contentTypeLabels[c]; ok {
		return label
	}
	return string(c)
}

// Tier returns the model tier used to write c: short social posts go to the
// lite model, long-form articles to the advanced one.
func (c ContentType) Tier() llm.ModelTier {
	switch c {
	case SocialMedia:
		return llm.TierLite
	case BlogArticle:
		return llm.TierAdvanced
	default:
		return llm.TierStandard
	}
}

// Valid reports whether c is a supported content type.
func (c ContentType) Valid() bool {
	_, ok := contentTypeLabels[c]
	return ok
}

// ParseContentType accepts either the identifier or the label, case-insensitively.
func ParseContentType(s string) (ContentType, error) {
	s = strings.TrimSpace(s)
	for _, ct := range ContentTypes {
		if strings.EqualFold(s, string(ct)) || strings.EqualFold(s, ct.Label()) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown content type %q (want one of BlogPost, SocialMedia, BlogArticle, ProductDescription)", s)
}

// Length limits for a request.
const (
	MinTargetLength = 100
	MaxTargetLength = 20000
)

// Request describes the content to generate.
type Request struct {
	Topic        string      `json:"topic" validate:"required,max=500"`
	ContentType  ContentType `json:"content_type" validate:"required,oneof=BlogPost SocialMedia BlogArticle ProductDescription"`
	TargetLength int         `json:"target_length" validate:"min=100,max=20000"`
}

var validate = validator.New()

// Validate checks the request fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return &ValidationError{Field: "topic", Message: "is required"}
	}
	if err := validate.Struct(r); err != nil {
		return validationErrorFrom(err)
	}
	return nil
}

// Attempt is one generate-then-score cycle.
type Attempt struct {
	Index   int                 `json:"index"`
	Prompt  string              `json:"prompt"`
	Content string              `json:"content"`
	Score   float64             `json:"score"`
	Report  *originality.Report `json:"report,omitempty"`
}

// AcceptedResult is the attempt that met the acceptance threshold.
type AcceptedResult struct {
	Attempt
	GeneratedAt time.Time `json:"generated_at"`
}

// State is the controller state of a run.
type State string

// Controller states.
const (
	StateAttempting       State = "attempting"
	StateAccepted         State = "accepted"
	StateExhaustedRetries State = "exhausted_retries"
	StateFailed           State = "failed"
)

// Result is the outcome of Controller.Run.
type Result struct {
	Request  Request         `json:"request"`
	State    State           `json:"state"`
	Attempts []Attempt       `json:"attempts"`
	Accepted *AcceptedResult `json:"accepted,omitempty"`
	// PersistError is set when the accepted result could not be saved. The result
	// is still accepted.
	PersistError error `json:"-"`
}

// BestScore returns the lowest score seen across attempts, or 100 if none ran.
func (r *Result) BestScore() float64 {
	best := 100.0
	for _, a := range r.Attempts {
		if a.Score < best {
			best = a.Score
		}
	}
	return best
}
