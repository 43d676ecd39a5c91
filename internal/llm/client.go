package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client is the single seam between the pipeline and whatever model backend
// answers. Implementations are chosen by configuration at startup; the
// pipeline never knows which one it got.
type Client interface {
	RunPrompt(ctx context.Context, prompt string, opts Options) (*Response, error)
}

// Options carries the per-call generation parameters.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Response is the backend-neutral reply shape.
type Response struct {
	Content string

	// Token usage, zero when the backend does not report it.
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	Model    string
	Duration time.Duration
}

// Backend failure taxonomy. Stage code matches on these; everything else from
// a backend is wrapped as a StatusError or a plain error.
var (
	ErrUnavailable = errors.New("model backend unavailable")
	ErrTimeout     = errors.New("model backend timed out")
)

// StatusError is a non-200 reply from an HTTP backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model backend returned status %d: %s", e.Code, e.Body)
}
