// Package gateway sends chat completion requests to the language model,
// retrying rate-limited attempts with exponential backoff.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/datasundae/pragi/internal/fault"
	"github.com/datasundae/pragi/internal/log"
)

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request. Temperature and MaxOutputTokens of zero
// mean the client's configured defaults.
type Request struct {
	Messages        []Message
	Temperature     float32
	MaxOutputTokens int32
}

// Usage reports the token accounting of a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the model's reply.
type Completion struct {
	Text  string
	Usage Usage
}

// Client performs a single completion attempt without retrying. Rate limits
// must surface as errors matching fault.ErrRateLimited.
type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// RetryPolicy bounds the retry loop. Delays grow exponentially from
// BackoffBase and never exceed BackoffCap.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// DefaultRetryPolicy retries twice after the first failure, waiting 4s then
// 8s between attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BackoffBase: 4 * time.Second, BackoffCap: 10 * time.Second}
}

func (p RetryPolicy) validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BackoffBase <= 0 {
		return fmt.Errorf("backoff base must be positive, got %s", p.BackoffBase)
	}
	if p.BackoffCap < p.BackoffBase {
		return fmt.Errorf("backoff cap %s below base %s", p.BackoffCap, p.BackoffBase)
	}
	return nil
}

// Gateway wraps a Client with the retry policy. Only rate-limited attempts
// are retried; every other error propagates immediately.
type Gateway struct {
	client  Client
	policy  RetryPolicy
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	logger  log.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLimiter adds a client-side rate limiter. Every attempt, retries
// included, waits for a token first.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(g *Gateway) { g.limiter = limiter }
}

// New creates a Gateway around client.
func New(client Client, policy RetryPolicy, logger log.Logger, opts ...Option) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if err := policy.validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	g := &Gateway{client: client, policy: policy, sleep: sleepContext, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Complete runs req against the client, retrying on rate limits up to the
// policy's attempt budget. When the budget is exhausted the last error is
// returned wrapped in fault.ErrServiceBusy. When the context cannot
// accommodate the next backoff delay, the attempt is abandoned with
// fault.ErrDeadlineExceeded rather than sleeping into a guaranteed timeout.
func (g *Gateway) Complete(ctx context.Context, req Request) (Completion, error) {
	if len(req.Messages) == 0 {
		return Completion{}, fmt.Errorf("%w: request has no messages", fault.ErrValidation)
	}

	backoff := retry.WithCappedDuration(g.policy.BackoffCap, retry.NewExponential(g.policy.BackoffBase))

	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return Completion{}, fmt.Errorf("%w: waiting for rate limiter: %v", fault.ErrDeadlineExceeded, err)
			}
		}

		completion, err := g.client.Complete(ctx, req)
		if err == nil {
			return completion, nil
		}
		if !errors.Is(err, fault.ErrRateLimited) {
			return Completion{}, err
		}
		lastErr = err

		if attempt == g.policy.MaxAttempts {
			break
		}

		delay, stop := backoff.Next()
		if stop {
			break
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			return Completion{}, fmt.Errorf("%w: %s backoff exceeds remaining context time",
				fault.ErrDeadlineExceeded, delay)
		}

		g.logger.Warn("completion rate limited, backing off",
			"attempt", attempt, "max_attempts", g.policy.MaxAttempts, "delay", delay)
		if err := g.sleep(ctx, delay); err != nil {
			return Completion{}, fmt.Errorf("%w: %v", fault.ErrDeadlineExceeded, err)
		}
	}

	return Completion{}, fmt.Errorf("%w: %d attempts exhausted: %v",
		fault.ErrServiceBusy, g.policy.MaxAttempts, lastErr)
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
