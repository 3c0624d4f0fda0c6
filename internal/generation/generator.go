package generation

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jonathan/content-guard/internal/llm"
	"github.com/jonathan/content-guard/internal/prompts"
)

// BuildPrompt renders the generation prompt for a request.
func BuildPrompt(req Request) string {
	return prompts.MustRender(prompts.GenerationFile, prompts.WriteContentKey, map[string]string{
		"ContentType": req.ContentType.Label(),
		"Topic":       req.Topic,
		"Length":      strconv.Itoa(req.TargetLength),
	})
}

// ContentGenerator turns a prompt into content with exactly one LLM call.
type ContentGenerator struct {
	client  llm.Client
	tier    llm.ModelTier
	timeout time.Duration
}

// NewContentGenerator wraps client. An empty tier picks the tier from each
// request's content type. A zero timeout selects llm.DefaultTimeout.
func NewContentGenerator(client llm.Client, tier llm.ModelTier, timeout time.Duration) *ContentGenerator {
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	return &ContentGenerator{client: client, tier: tier, timeout: timeout}
}

// Generate returns the model output verbatim, empty output included. Only a
// failed model call is a *GenerationError.
func (g *ContentGenerator) Generate(ctx context.Context, req Request, prompt string) (string, error) {
	tier := g.tier
	if tier == "" {
		tier = req.ContentType.Tier()
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	content, err := g.client.GenerateContent(ctx, prompt, tier)
	if err != nil {
		msg := "language model call failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "language model call timed out after " + g.timeout.String()
		}
		return "", &GenerationError{Message: msg, Cause: err}
	}
	return content, nil
}
