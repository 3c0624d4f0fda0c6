package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/content-guard/internal/originality"
)

// Defaults for the control loop.
const (
	DefaultMaxAttempts         = 5
	DefaultAcceptanceThreshold = 10.0
	DefaultRetryDelay          = 2 * time.Second
)

// Generator produces content for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request, prompt string) (string, error)
}

// Checker scores content for originality.
type Checker interface {
	Check(ctx context.Context, text string) (*originality.Report, error)
}

// Store persists accepted content.
type Store interface {
	SaveContent(ctx context.Context, req Request, accepted AcceptedResult) error
}

// Recorder receives run metrics.
type Recorder interface {
	ObserveAttempt(score float64, accepted bool)
	ObserveRun(state State, attempts int)
	ObservePersist(ok bool)
}

// ProgressEvent is emitted as a run advances.
type ProgressEvent struct {
	Step    string  `json:"step"`
	Attempt int     `json:"attempt"`
	Message string  `json:"message"`
	Score   float64 `json:"score,omitempty"`
	Content string  `json:"content,omitempty"`
}

// Progress steps.
const (
	StepAttemptStarted = "attempt_started"
	StepAttemptScored  = "attempt_scored"
	StepAccepted       = "accepted"
	StepRejected       = "rejected"
	StepExhausted      = "exhausted"
	StepPersistFailed  = "persist_failed"
)

// ProgressCallback is called synchronously for every progress event.
type ProgressCallback func(event ProgressEvent)

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	// MaxAttempts is capped at DefaultMaxAttempts.
	MaxAttempts         int
	AcceptanceThreshold float64
	RetryDelay          time.Duration
	// NoRetryDelay disables the wait between attempts. RetryDelay is ignored.
	NoRetryDelay bool
	Logger       *slog.Logger
	Metrics      Recorder
	OnProgress   ProgressCallback
	// Now and Sleep are overridable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Controller runs the generate, check, accept-or-retry loop.
// It holds no per-run state and may be shared between goroutines.
type Controller struct {
	generator  Generator
	checker    Checker
	store      Store
	maxAttempt int
	threshold  float64
	delay      time.Duration
	logger     *slog.Logger
	metrics    Recorder
	onProgress ProgressCallback
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewController wires the collaborators. store may be nil to skip persistence.
func NewController(generator Generator, checker Checker, store Store, opts Options) (*Controller, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("checker is required")
	}

	c := &Controller{
		generator:  generator,
		checker:    checker,
		store:      store,
		maxAttempt: opts.MaxAttempts,
		threshold:  opts.AcceptanceThreshold,
		delay:      opts.RetryDelay,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		onProgress: opts.OnProgress,
		now:        opts.Now,
		sleep:      opts.Sleep,
	}
	if c.maxAttempt <= 0 || c.maxAttempt > DefaultMaxAttempts {
		c.maxAttempt = DefaultMaxAttempts
	}
	if c.threshold <= 0 {
		c.threshold = DefaultAcceptanceThreshold
	}
	if opts.NoRetryDelay {
		c.delay = 0
	} else if c.delay <= 0 {
		c.delay = DefaultRetryDelay
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c, nil
}

// MaxAttempts returns the attempt budget.
func (c *Controller) MaxAttempts() int {
	return c.maxAttempt
}

// AcceptanceThreshold returns the highest accepted score, in percent.
func (c *Controller) AcceptanceThreshold() float64 {
	return c.threshold
}

// WithProgress returns a copy of c that reports progress to fn in addition to
// any callback c already has.
func (c *Controller) WithProgress(fn ProgressCallback) *Controller {
	clone := *c
	prev := c.onProgress
	clone.onProgress = func(e ProgressEvent) {
		if prev != nil {
			prev(e)
		}
		fn(e)
	}
	return &clone
}

// Run generates content for req. Attempts run strictly one after another.
//
// On acceptance it returns a Result in StateAccepted and a nil error, even if
// saving failed (see Result.PersistError). If every attempt scores above the
// threshold it returns the Result in StateExhaustedRetries together with a
// *RetryBudgetExhaustedError. A generation failure ends the run immediately with a
// *GenerationError; cancellation returns ctx.Err(). In both cases the Result
// holds the attempts completed so far.
func (c *Controller) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Request: req, State: StateAttempting}
	prompt := BuildPrompt(req)
	logger := c.logger.With("topic", req.Topic, "content_type", req.ContentType)

	for index := 1; index <= c.maxAttempt; index++ {
		c.emit(ProgressEvent{Step: StepAttemptStarted, Attempt: index, Message: fmt.Sprintf("Attempt %d: generating content", index)})

		content, err := c.generator.Generate(ctx, req, prompt)
		if err != nil {
			return c.fail(ctx, result, index, err)
		}

		report, err := c.checker.Check(ctx, content)
		if err != nil {
			return c.fail(ctx, result, index, err)
		}

		attempt := Attempt{
			Index:   index,
			Prompt:  prompt,
			Content: content,
			Score:   report.Score,
			Report:  report,
		}
		result.Attempts = append(result.Attempts, attempt)

		accepted := attempt.Score <= c.threshold
		if c.metrics != nil {
			c.metrics.ObserveAttempt(attempt.Score, accepted)
		}
		logger.Info("attempt scored", "attempt", index, "score", attempt.Score, "fragments", report.Total, "plagiarized", report.Plagiarized)
		c.emit(ProgressEvent{Step: StepAttemptScored, Attempt: index, Score: attempt.Score, Message: fmt.Sprintf("Plagiarism score: %.2f%%", attempt.Score)})

		if accepted {
			c.accept(ctx, logger, result, attempt)
			return result, nil
		}

		if index == c.maxAttempt {
			break
		}

		c.emit(ProgressEvent{Step: StepRejected, Attempt: index, Score: attempt.Score, Message: "High plagiarism score, regenerating content"})
		if err := c.sleep(ctx, c.delay); err != nil {
			return c.fail(ctx, result, index, err)
		}
	}

	result.State = StateExhaustedRetries
	exhausted := &RetryBudgetExhaustedError{
		Attempts:  len(result.Attempts),
		BestScore: result.BestScore(),
		Threshold: c.threshold,
	}
	if c.metrics != nil {
		c.metrics.ObserveRun(result.State, len(result.Attempts))
	}
	logger.Warn("retry budget exhausted", "attempts", exhausted.Attempts, "best_score", exhausted.BestScore)
	c.emit(ProgressEvent{Step: StepExhausted, Attempt: len(result.Attempts), Score: exhausted.BestScore, Message: "Could not generate clean content within attempts limit"})
	return result, exhausted
}

// accept finalizes an accepted attempt and persists it. Persistence failures are
// recorded on the result but do not undo the acceptance.
func (c *Controller) accept(ctx context.Context, logger *slog.Logger, result *Result, attempt Attempt) {
	result.State = StateAccepted
	result.Accepted = &AcceptedResult{Attempt: attempt, GeneratedAt: c.now()}
	if c.metrics != nil {
		c.metrics.ObserveRun(result.State, len(result.Attempts))
	}
	c.emit(ProgressEvent{Step: StepAccepted, Attempt: attempt.Index, Score: attempt.Score, Content: attempt.Content, Message: "Final content"})

	if c.store == nil {
		return
	}

	// Accepted content is saved even if the caller has gone away.
	err := c.store.SaveContent(context.WithoutCancel(ctx), result.Request, *result.Accepted)
	if c.metrics != nil {
		c.metrics.ObservePersist(err == nil)
	}
	if err != nil {
		result.PersistError = err
		logger.Error("failed to save accepted content", "attempt", attempt.Index, "error", err)
		c.emit(ProgressEvent{Step: StepPersistFailed, Attempt: attempt.Index, Message: "Error while saving content: " + err.Error()})
	}
}

// fail ends the run. Cancellation of the run's context wins over whatever error
// the collaborator wrapped it in.
func (c *Controller) fail(ctx context.Context, result *Result, index int, err error) (*Result, error) {
	result.State = StateFailed
	if c.metrics != nil {
		c.metrics.ObserveRun(result.State, len(result.Attempts))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		genErr.Attempt = index
		return result, genErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return result, err
	}
	return result, &GenerationError{Attempt: index, Message: "attempt failed", Cause: err}
}

func (c *Controller) emit(event ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(event)
	}
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
