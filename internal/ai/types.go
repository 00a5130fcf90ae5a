package ai

import (
    "context"
    "errors"
)

// Request is a generic completion request for one summarization step.
type Request struct {
    JobID     string
    Batch     int
    System    string
    User      string
    Model     string
    MaxTokens int
}

type Response struct {
    Text      string
    TokensIn  int
    TokensOut int
}

// Client interface for providers like OpenAI, Anthropic.
type Client interface {
    Name() string
    Do(ctx context.Context, req Request) (Response, error)
}

var (
    ErrRateLimited    = errors.New("rate_limited")
    ErrContentRefused = errors.New("content_refused")
)

func IsRateLimited(err error) bool    { return errors.Is(err, ErrRateLimited) }
func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }
