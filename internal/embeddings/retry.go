package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// RetryingEmbedder wraps an Embedder with bounded exponential backoff for
// retryable provider failures (timeouts, quota, 5xx). Exhausted retries
// surface ErrUnavailable; non-retryable errors are returned immediately.
type RetryingEmbedder struct {
	inner       Embedder
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetryingEmbedder wraps the given embedder with up to 3 attempts and a
// 500ms base backoff (500ms, 1s between attempts).
func NewRetryingEmbedder(inner Embedder) *RetryingEmbedder {
	return &RetryingEmbedder{
		inner:       inner,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

func (r *RetryingEmbedder) Name() string    { return r.inner.Name() }
func (r *RetryingEmbedder) Dimensions() int { return r.inner.Dimensions() }

func (r *RetryingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	delay := r.baseDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		vectors, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !Retryable(err) {
			return nil, err
		}
		if attempt == r.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w: %d attempts failed, last: %s", ErrUnavailable, r.maxAttempts, lastErr)
}

// Retryable classifies a provider error: quota (429), server errors (5xx),
// and network timeouts are retryable; everything else (bad request, auth) is
// not.
func Retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}
