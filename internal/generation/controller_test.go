package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-guard/internal/originality"
)

// scriptedGenerator returns contents in order, repeating the last one.
type scriptedGenerator struct {
	contents []string
	errAt    int // 1-based call that fails, 0 for never
	err      error
	calls    int
	reqs     []Request
}

func (g *scriptedGenerator) Generate(_ context.Context, req Request, _ string) (string, error) {
	g.calls++
	g.reqs = append(g.reqs, req)
	if g.errAt == g.calls {
		return "", g.err
	}
	i := g.calls - 1
	if i >= len(g.contents) {
		i = len(g.contents) - 1
	}
	return g.contents[i], nil
}

// scriptedChecker returns scores in order, repeating the last one.
type scriptedChecker struct {
	scores []float64
	calls  int
}

func (c *scriptedChecker) Check(_ context.Context, _ string) (*originality.Report, error) {
	c.calls++
	i := c.calls - 1
	if i >= len(c.scores) {
		i = len(c.scores) - 1
	}
	return &originality.Report{Score: c.scores[i]}, nil
}

type savedContent struct {
	req      Request
	accepted AcceptedResult
}

type fakeStore struct {
	mu      sync.Mutex
	saved   []savedContent
	ctxErrs []error
	err     error
}

func (s *fakeStore) SaveContent(ctx context.Context, req Request, accepted AcceptedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, savedContent{req: req, accepted: accepted})
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return s.err
}

// checkerFunc adapts a function to the Checker interface.
type checkerFunc func(ctx context.Context, text string) (*originality.Report, error)

func (f checkerFunc) Check(ctx context.Context, text string) (*originality.Report, error) {
	return f(ctx, text)
}

// fakeSearcher returns a fixed response for every query.
type fakeSearcher struct {
	fn      func(query string) ([]string, error)
	queries int
}

func (f *fakeSearcher) Snippets(_ context.Context, query string) ([]string, error) {
	f.queries++
	return f.fn(query)
}

type fakeMetrics struct {
	attempts []float64
	states   []State
	persist  []bool
}

func (m *fakeMetrics) ObserveAttempt(score float64, _ bool) { m.attempts = append(m.attempts, score) }
func (m *fakeMetrics) ObserveRun(state State, _ int)        { m.states = append(m.states, state) }
func (m *fakeMetrics) ObservePersist(ok bool)               { m.persist = append(m.persist, ok) }

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func testOptions(sleeper *sleepRecorder) Options {
	return Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return fixedNow },
		Sleep:  sleeper.sleep,
	}
}

func newTestController(t *testing.T, gen Generator, checker Checker, store Store, opts Options) *Controller {
	t.Helper()
	c, err := NewController(gen, checker, store, opts)
	require.NoError(t, err)
	return c
}

func TestNewController_Defaults(t *testing.T) {
	c := newTestController(t, &scriptedGenerator{contents: []string{"x"}}, &scriptedChecker{scores: []float64{0}}, nil, Options{})

	assert.Equal(t, DefaultMaxAttempts, c.MaxAttempts())
	assert.Equal(t, DefaultAcceptanceThreshold, c.AcceptanceThreshold())
	assert.Equal(t, DefaultRetryDelay, c.delay)

	c = newTestController(t, &scriptedGenerator{contents: []string{"x"}}, &scriptedChecker{scores: []float64{0}}, nil, Options{NoRetryDelay: true, RetryDelay: time.Hour})
	assert.Equal(t, time.Duration(0), c.delay)
}

func TestNewController_CapsAttemptBudget(t *testing.T) {
	c := newTestController(t, &scriptedGenerator{contents: []string{"x"}}, &scriptedChecker{scores: []float64{0}}, nil, Options{MaxAttempts: 12})
	assert.Equal(t, DefaultMaxAttempts, c.MaxAttempts())

	gen := &scriptedGenerator{contents: []string{"copied"}}
	opts := testOptions(&sleepRecorder{})
	opts.MaxAttempts = 50
	c = newTestController(t, gen, &scriptedChecker{scores: []float64{90}}, nil, opts)
	_, err := c.Run(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.Equal(t, DefaultMaxAttempts, gen.calls)
}

func TestNewController_RequiresCollaborators(t *testing.T) {
	_, err := NewController(nil, &scriptedChecker{}, nil, Options{})
	assert.Error(t, err)

	_, err = NewController(&scriptedGenerator{}, nil, nil, Options{})
	assert.Error(t, err)
}

func TestRun_InvalidRequest(t *testing.T) {
	gen := &scriptedGenerator{contents: []string{"x"}}
	c := newTestController(t, gen, &scriptedChecker{scores: []float64{0}}, nil, testOptions(&sleepRecorder{}))

	result, err := c.Run(context.Background(), Request{Topic: "x", ContentType: BlogPost, TargetLength: 5})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Nil(t, result)
	assert.Equal(t, 0, gen.calls)
}

func TestRun_AcceptsFirstCleanAttempt(t *testing.T) {
	gen := &scriptedGenerator{contents: []string{"draft one", "draft two", "draft three"}}
	checker := &scriptedChecker{scores: []float64{55, 10, 0}}
	store := &fakeStore{}
	sleeper := &sleepRecorder{}
	c := newTestController(t, gen, checker, store, testOptions(sleeper))

	result, err := c.Run(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, StateAccepted, result.State)
	assert.Equal(t, 2, gen.calls, "no attempt is generated after acceptance")
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, 1, result.Attempts[0].Index)
	assert.Equal(t, 2, result.Attempts[1].Index)

	require.NotNil(t, result.Accepted)
	assert.Equal(t, "draft two", result.Accepted.Content)
	assert.Equal(t, 10.0, result.Accepted.Score, "score equal to the threshold is accepted")
	assert.Equal(t, fixedNow, result.Accepted.GeneratedAt)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "draft two", store.saved[0].accepted.Content)
	assert.Equal(t, validRequest(), store.saved[0].req)

	assert.Equal(t, []time.Duration{DefaultRetryDelay}, sleeper.calls)
}

func TestRun_ExhaustsRetries(t *testing.T) {
	gen := &scriptedGenerator{contents: []string{"copied"}}
	checker := &scriptedChecker{scores: []float64{80, 60, 40, 20, 10.5}}
	store := &fakeStore{}
	sleeper := &sleepRecorder{}
	metrics := &fakeMetrics{}
	opts := testOptions(sleeper)
	opts.Metrics = metrics
	c := newTestController(t, gen, checker, store, opts)

	result, err := c.Run(context.Background(), validRequest())
	require.Error(t, err)

	var exhausted *RetryBudgetExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.Equal(t, 5, exhausted.Attempts)
	assert.Equal(t, 10.5, exhausted.BestScore)

	assert.Equal(t, StateExhaustedRetries, result.State)
	assert.Nil(t, result.Accepted)
	assert.Len(t, result.Attempts, 5)
	assert.Equal(t, 5, gen.calls)
	assert.Empty(t, store.saved, "nothing is persisted when retries are exhausted")
	assert.Len(t, sleeper.calls, 4, "no wait after the final attempt")

	assert.Equal(t, []float64{80, 60, 40, 20, 10.5}, metrics.attempts)
	assert.Equal(t, []State{StateExhaustedRetries}, metrics.states)
	assert.Empty(t, metrics.persist)
}

func TestRun_CustomBudget(t *testing.T) {
	gen := &scriptedGenerator{contents: []string{"copied"}}
	opts := testOptions(&sleepRecorder{})
	opts.MaxAttempts = 2
	opts.AcceptanceThreshold = 5
	c := newTestController(t, gen, &scriptedChecker{scores: []float64{6}}, nil, opts)

	_, err := c.Run(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)
	assert.Equal(t, 2, gen.calls)
}

func TestRun_GenerationFailureIsNotRetried(t *testing.T) {
	gen := &scriptedGenerator{
		contents: []string{"copied"},
		errAt:    2,
		err:      &GenerationError{Message: "language model call failed", Cause: errors.New("connection refused")},
	}
	store := &fakeStore{}
	c := newTestController(t, gen, &scriptedChecker{scores: []float64{90}}, store, testOptions(&sleepRecorder{}))

	result, err := c.Run(context.Background(), validRequest())
	require.Error(t, err)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, genErr.Attempt)
	assert.Equal(t, StateFailed, result.State)
	assert.Len(t, result.Attempts, 1)
	assert.Equal(t, 2, gen.calls)
	assert.Empty(t, store.saved)
}

func TestRun_PlainGeneratorErrorIsWrapped(t *testing.T) {
	gen := &scriptedGenerator{contents: []string{"x"}, errAt: 1, err: errors.New("boom")}
	c := newTestController(t, gen, &scriptedChecker{scores: []float64{0}}, nil, testOptions(&sleepRecorder{}))

	_, err := c.Run(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestRun_PersistFailureKeepsAcceptance(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	metrics := &fakeMetrics{}
	var events []ProgressEvent
	opts := testOptions(&sleepRecorder{})
	opts.Metrics = metrics
	opts.OnProgress = func(e ProgressEvent) { events = append(events, e) }
	c := newTestController(t, &scriptedGenerator{contents: []string{"fresh"}}, &scriptedChecker{scores: []float64{0}}, store, opts)

	result, err := c.Run(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, StateAccepted, result.State)
	require.NotNil(t, result.Accepted)
	assert.EqualError(t, result.PersistError, "connection refused")
	assert.Equal(t, []bool{false}, metrics.persist)
	assert.Equal(t, StepPersistFailed, events[len(events)-1].Step)
}

func TestRun_ProgressEvents(t *testing.T) {
	var steps []string
	opts := testOptions(&sleepRecorder{})
	opts.OnProgress = func(e ProgressEvent) { steps = append(steps, e.Step) }
	c := newTestController(t, &scriptedGenerator{contents: []string{"a", "b"}}, &scriptedChecker{scores: []float64{50, 0}}, nil, opts)

	_, err := c.Run(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{
		StepAttemptStarted, StepAttemptScored, StepRejected,
		StepAttemptStarted, StepAttemptScored, StepAccepted,
	}, steps)
}

func TestWithProgress_ChainsCallbacks(t *testing.T) {
	var first, second int
	opts := testOptions(&sleepRecorder{})
	opts.OnProgress = func(ProgressEvent) { first++ }
	c := newTestController(t, &scriptedGenerator{contents: []string{"a"}}, &scriptedChecker{scores: []float64{0}}, nil, opts)

	_, err := c.WithProgress(func(ProgressEvent) { second++ }).Run(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, first)
	assert.Equal(t, 3, second)

	// The original controller is unchanged.
	_, err = c.Run(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 6, first)
	assert.Equal(t, 3, second)
}

func TestRun_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := testOptions(&sleepRecorder{})
	opts.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	gen := &scriptedGenerator{contents: []string{"copied"}}
	c := newTestController(t, gen, &scriptedChecker{scores: []float64{90}}, nil, opts)

	result, err := c.Run(ctx, validRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 1, gen.calls)
}

func TestRun_CancelDuringGenerationReturnsContextError(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
		want error
	}{
		{
			name: "cancelled",
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, cancel
			},
			want: context.Canceled,
		},
		{
			name: "deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithDeadline(context.Background(), time.Now().Add(-time.Hour))
			},
			want: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()
			gen := &scriptedGenerator{
				contents: []string{"x"},
				errAt:    1,
				err:      &GenerationError{Message: "language model call failed", Cause: tt.want},
			}
			c := newTestController(t, gen, &scriptedChecker{scores: []float64{0}}, nil, testOptions(&sleepRecorder{}))

			result, err := c.Run(ctx, validRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var genErr *GenerationError
			assert.False(t, errors.As(err, &genErr), "got %T", err)
			assert.Equal(t, StateFailed, result.State)
		})
	}
}

func TestRun_SavesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	checker := checkerFunc(func(context.Context, string) (*originality.Report, error) {
		// The caller disconnects while the last attempt is being scored.
		cancel()
		return &originality.Report{Score: 0}, nil
	})
	store := &fakeStore{}
	c := newTestController(t, &scriptedGenerator{contents: []string{"fresh"}}, checker, store, testOptions(&sleepRecorder{}))

	result, err := c.Run(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, StateAccepted, result.State)
	require.Len(t, store.saved, 1)
	assert.NoError(t, store.ctxErrs[0], "save must not inherit the caller's cancellation")
	assert.NoError(t, result.PersistError)
}

func TestRun_PassesRequestToGenerator(t *testing.T) {
	gen := &scriptedGenerator{contents: []string{"x"}}
	c := newTestController(t, gen, &scriptedChecker{scores: []float64{0}}, nil, testOptions(&sleepRecorder{}))

	req := Request{Topic: "launch day", ContentType: SocialMedia, TargetLength: 120}
	_, err := c.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []Request{req}, gen.reqs)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
	assert.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

// End-to-end scenarios using the real originality checker with fake search.

const novelArticle = "Quantum processors manipulate fragile qubits inside dilution refrigerators. " +
	"Error correction remains the central engineering hurdle for the field. " +
	"Researchers expect hybrid algorithms to deliver value first"

func realChecker(searcher originality.Searcher) *originality.Checker {
	return originality.NewChecker(searcher, originality.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestScenario_NovelTextAcceptedFirstAttempt(t *testing.T) {
	searcher := &fakeSearcher{fn: func(string) ([]string, error) { return nil, nil }}
	gen := &scriptedGenerator{contents: []string{novelArticle}}
	store := &fakeStore{}
	c := newTestController(t, gen, realChecker(searcher), store, testOptions(&sleepRecorder{}))

	req := Request{Topic: "quantum computing", ContentType: BlogPost, TargetLength: 300}
	result, err := c.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StateAccepted, result.State)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 3, searcher.queries)

	require.Len(t, store.saved, 1)
	assert.Equal(t, 0.0, store.saved[0].accepted.Score)
	assert.Equal(t, req, store.saved[0].req)
	assert.Equal(t, "Write a unique BlogPost about quantum computing, around 300 words. Avoid plagiarism.", store.saved[0].accepted.Prompt)
}

func TestScenario_CopiedTextExhaustsRetries(t *testing.T) {
	fragments := originality.SplitFragments(novelArticle)
	searcher := &fakeSearcher{fn: func(q string) ([]string, error) {
		for _, f := range fragments {
			if strings.HasPrefix(f, q) {
				return []string{f}, nil
			}
		}
		return nil, nil
	}}
	gen := &scriptedGenerator{contents: []string{novelArticle}}
	store := &fakeStore{}
	c := newTestController(t, gen, realChecker(searcher), store, testOptions(&sleepRecorder{}))

	result, err := c.Run(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrRetryBudgetExhausted)

	assert.Equal(t, StateExhaustedRetries, result.State)
	require.Len(t, result.Attempts, 5)
	for _, a := range result.Attempts {
		assert.Equal(t, 100.0, a.Score)
	}
	assert.Empty(t, store.saved)
}

func TestScenario_SearchOutageFailsOpen(t *testing.T) {
	searcher := &fakeSearcher{fn: func(string) ([]string, error) {
		return nil, errors.New("search returned status 503")
	}}
	gen := &scriptedGenerator{contents: []string{novelArticle}}
	store := &fakeStore{}
	c := newTestController(t, gen, realChecker(searcher), store, testOptions(&sleepRecorder{}))

	result, err := c.Run(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, StateAccepted, result.State)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 0.0, result.Accepted.Score)
	assert.Equal(t, 3, result.Accepted.Report.SearchFailures)
	assert.Len(t, store.saved, 1)
}

func TestScenario_EmptyOutputAcceptedAtZero(t *testing.T) {
	searcher := &fakeSearcher{fn: func(string) ([]string, error) { return nil, nil }}
	gen := &scriptedGenerator{contents: []string{""}}
	store := &fakeStore{}
	c := newTestController(t, gen, realChecker(searcher), store, testOptions(&sleepRecorder{}))

	result, err := c.Run(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, StateAccepted, result.State)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 0, searcher.queries)
	require.NotNil(t, result.Accepted)
	assert.Equal(t, "", result.Accepted.Content)
	assert.Equal(t, 0.0, result.Accepted.Score)
	assert.Equal(t, 1, result.Accepted.Report.Total)
	require.Len(t, store.saved, 1)
}
