package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds generation retries on content-check failures.
const DefaultMaxAttempts = 3

// TextGenerator is the raw text-generation collaborator wrapped by Caller.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ContentCheck validates generated text. A non-nil return marks the
// response invalid and retryable: the generator is non-deterministic, so a
// single failed heuristic check is not proof of a real defect. It is an
// alias so plain closures satisfy the core.Generator interface unchanged.
type ContentCheck = func(string) error

// NonEmpty is the baseline content check.
func NonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("response is empty")
	}
	return nil
}

// Caller wraps a TextGenerator with bounded retry. Content-check failures
// retry up to the attempt bound with exponential backoff; service errors
// from the generator fail immediately with no retry, since infrastructure
// retry policy belongs to the generator's own client.
type Caller struct {
	gen         TextGenerator
	maxAttempts int
	interval    time.Duration
	logger      *zap.Logger
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithMaxAttempts sets the total attempt bound (minimum 1).
func WithMaxAttempts(n int) CallerOption {
	return func(c *Caller) {
		if n >= 1 {
			c.maxAttempts = n
		}
	}
}

// WithRetryInterval sets the initial backoff interval between attempts.
func WithRetryInterval(d time.Duration) CallerOption {
	return func(c *Caller) { c.interval = d }
}

// WithLogger sets the caller's logger.
func WithLogger(logger *zap.Logger) CallerOption {
	return func(c *Caller) { c.logger = logger }
}

// NewCaller wraps gen with content-check retry.
func NewCaller(gen TextGenerator, opts ...CallerOption) *Caller {
	c := &Caller{
		gen:         gen,
		maxAttempts: DefaultMaxAttempts,
		interval:    500 * time.Millisecond,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate produces text, retrying while the response is empty.
func (c *Caller) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return c.GenerateChecked(ctx, prompt, maxTokens, NonEmpty)
}

// GenerateChecked produces text that passes check, retrying content-check
// failures up to the attempt bound. On exhaustion it returns the last
// content error; a hard generator error surfaces immediately.
func (c *Caller) GenerateChecked(ctx context.Context, prompt string, maxTokens int, check ContentCheck) (string, error) {
	var out string
	attempt := 0

	operation := func() error {
		attempt++
		text, err := c.gen.Generate(ctx, prompt, maxTokens)
		if err != nil {
			return backoff.Permanent(err) // service error: not retryable
		}
		if check != nil {
			if cerr := check(text); cerr != nil {
				c.logger.Warn("content check failed",
					zap.Int("attempt", attempt), zap.Error(cerr))
				return cerr
			}
		}
		out = text
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	b.MaxElapsedTime = 0 // attempts are bounded by count, not wall time

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("generation failed after %d attempt(s): %w", attempt, err)
	}
	return out, nil
}
