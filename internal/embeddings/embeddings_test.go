package embeddings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// countingEmbedder records how many texts were sent to the provider and can
// be scripted to fail a number of times before succeeding.
type countingEmbedder struct {
	mu        sync.Mutex
	calls     int
	texts     int
	failTimes int
	failWith  error
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failTimes > 0 {
		e.failTimes--
		return nil, e.failWith
	}
	e.texts += len(texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int { return 2 }
func (e *countingEmbedder) Name() string    { return "counting" }

func (e *countingEmbedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestCache_SecondEmbedIsFree(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCachingEmbedder(inner, time.Hour)
	ctx := context.Background()

	first, err := cache.Embed(ctx, []string{"what is a goroutine?"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Embed(ctx, []string{"what is a goroutine?"})
	if err != nil {
		t.Fatal(err)
	}

	if inner.CallCount() != 1 {
		t.Errorf("expected exactly 1 provider call, got %d", inner.CallCount())
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 vector per call")
	}
	if first[0][0] != second[0][0] {
		t.Errorf("cached vector differs from original")
	}
}

func TestCache_NormalizedTextsShareEntry(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCachingEmbedder(inner, time.Hour)
	ctx := context.Background()

	if _, err := cache.Embed(ctx, []string{"hello   world"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Embed(ctx, []string{"hello world"}); err != nil {
		t.Fatal(err)
	}
	if inner.CallCount() != 1 {
		t.Errorf("whitespace variants should share one cache entry, got %d calls", inner.CallCount())
	}
}

func TestCache_ExpiryTriggersReembed(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCachingEmbedder(inner, 10*time.Millisecond)
	ctx := context.Background()

	if _, err := cache.Embed(ctx, []string{"expiring text"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := cache.Embed(ctx, []string{"expiring text"}); err != nil {
		t.Fatal(err)
	}
	if inner.CallCount() != 2 {
		t.Errorf("expected re-embed after TTL, got %d calls", inner.CallCount())
	}
}

func TestCache_PartialHitOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewCachingEmbedder(inner, time.Hour)
	ctx := context.Background()

	if _, err := cache.Embed(ctx, []string{"alpha"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Embed(ctx, []string{"alpha", "beta", "beta"}); err != nil {
		t.Fatal(err)
	}

	// Second call should only send the one unique miss ("beta").
	if inner.texts != 2 {
		t.Errorf("expected 2 texts sent to provider in total, got %d", inner.texts)
	}
	hits, misses := cache.Stats()
	if hits == 0 || misses == 0 {
		t.Errorf("expected both hits and misses recorded, got hits=%d misses=%d", hits, misses)
	}
}

func TestRetry_ExhaustionSurfacesUnavailable(t *testing.T) {
	inner := &countingEmbedder{
		failTimes: 10,
		failWith:  &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"},
	}
	retrier := NewRetryingEmbedder(inner)
	retrier.baseDelay = time.Millisecond

	_, err := retrier.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if inner.CallCount() != 3 {
		t.Errorf("expected 3 attempts, got %d", inner.CallCount())
	}
}

func TestRetry_TransientFailureRecovers(t *testing.T) {
	inner := &countingEmbedder{
		failTimes: 1,
		failWith:  &openai.APIError{HTTPStatusCode: 429, Message: "quota"},
	}
	retrier := NewRetryingEmbedder(inner)
	retrier.baseDelay = time.Millisecond

	vectors, err := retrier.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if inner.CallCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", inner.CallCount())
	}
}

func TestRetry_NonRetryableFailsFast(t *testing.T) {
	inner := &countingEmbedder{
		failTimes: 10,
		failWith:  &openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
	}
	retrier := NewRetryingEmbedder(inner)
	retrier.baseDelay = time.Millisecond

	_, err := retrier.Embed(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("auth failure should not classify as unavailable")
	}
	if inner.CallCount() != 1 {
		t.Errorf("expected a single attempt, got %d", inner.CallCount())
	}
}
