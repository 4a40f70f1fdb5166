package llm

import "context"

// Provider defines the interface for chat completion providers.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Stream sends a completion request and returns an incremental stream.
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)
	// Name returns the name of this provider.
	Name() string
}

// Stream yields incremental completion text. Recv returns io.EOF when the
// stream completes normally; any other error means the stream failed upstream.
type Stream interface {
	Recv() (string, error)
	Close() error
}
