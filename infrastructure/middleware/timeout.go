// Package middleware provides ports.LLMClient decorators for the resilience
// concerns device-offload node bodies need around a remote accelerator call:
// bounded latency, failure isolation, and request pacing.
package middleware

import (
	"context"
	"time"

	"github.com/ahrav/go-gavel/internal/ports"
)

// timeoutClient enforces a deadline on every call to the wrapped client so
// a stalled accelerator can never stall the node body that invoked it.
type timeoutClient struct {
	next    ports.LLMClient
	timeout time.Duration
}

// NewTimeoutClient wraps next so every Complete/CompleteWithUsage call is
// bounded by timeout, regardless of the context the caller supplied.
func NewTimeoutClient(next ports.LLMClient, timeout time.Duration) ports.LLMClient {
	return &timeoutClient{next: next, timeout: timeout}
}

func (t *timeoutClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, prompt, options)
}

func (t *timeoutClient) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.CompleteWithUsage(ctx, prompt, options)
}

func (t *timeoutClient) EstimateTokens(text string) (int, error) { return t.next.EstimateTokens(text) }
func (t *timeoutClient) GetModel() string                        { return t.next.GetModel() }

var _ ports.LLMClient = (*timeoutClient)(nil)
