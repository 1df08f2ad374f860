package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-gavel/internal/ports"
)

// rateLimitedClient enforces a token-bucket pace on calls to the wrapped
// accelerator client, so a burst of ready device-placed tasks cannot exceed
// a provider's own rate limit.
type rateLimitedClient struct {
	next    ports.LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps next with a token-bucket limiter allowing
// limit requests per second with the given burst allowance.
func NewRateLimitedClient(next ports.LLMClient, limit rate.Limit, burst int) ports.LLMClient {
	return &rateLimitedClient{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *rateLimitedClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Complete(ctx, prompt, options)
}

func (r *rateLimitedClient) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, 0, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.CompleteWithUsage(ctx, prompt, options)
}

func (r *rateLimitedClient) EstimateTokens(text string) (int, error) { return r.next.EstimateTokens(text) }
func (r *rateLimitedClient) GetModel() string                        { return r.next.GetModel() }

var _ ports.LLMClient = (*rateLimitedClient)(nil)
