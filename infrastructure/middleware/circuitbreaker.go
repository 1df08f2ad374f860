package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-gavel/internal/ports"
)

// ErrCircuitOpen indicates the circuit breaker rejected a call because the
// wrapped accelerator has been failing and is in its cooldown window.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the current state of a CircuitBreaker.
type CircuitState int

const (
	// StateClosed allows all calls through.
	StateClosed CircuitState = iota
	// StateOpen rejects all calls immediately.
	StateOpen
	// StateHalfOpen allows a single probe call to test recovery.
	StateHalfOpen
)

// CircuitBreaker trips open after maxFailures consecutive failures and
// rejects calls until cooldown has elapsed, then allows one probe call
// through before deciding whether to close again.
type CircuitBreaker struct {
	mu               sync.RWMutex
	state            CircuitState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	lastFailure      time.Time
}

// NewCircuitBreaker creates a circuit breaker that opens after maxFailures
// consecutive failures and stays open for cooldownDuration.
func NewCircuitBreaker(maxFailures int, cooldownDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: maxFailures, cooldownDuration: cooldownDuration}
}

// Call runs fn through the breaker, returning ErrCircuitOpen without
// invoking fn when the circuit is open and still in cooldown.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.cooldownDuration {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		fallthrough
	case StateHalfOpen:
		if err := fn(); err != nil {
			cb.failureCount++
			cb.lastFailure = time.Now()
			cb.state = StateOpen
			return err
		}
		cb.failureCount = 0
		cb.state = StateClosed
		return nil
	default: // StateClosed
		if err := fn(); err != nil {
			cb.failureCount++
			cb.lastFailure = time.Now()
			if cb.failureCount >= cb.maxFailures {
				cb.state = StateOpen
			}
			return err
		}
		cb.failureCount = 0
		return nil
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// circuitBreakerClient wraps a ports.LLMClient behind a CircuitBreaker so a
// struggling accelerator stops receiving new node-body calls until it has
// had time to recover.
type circuitBreakerClient struct {
	next ports.LLMClient
	cb   *CircuitBreaker
}

// NewCircuitBreakerClient wraps next with a circuit breaker that opens
// after maxFailures consecutive errors and stays open for cooldown.
func NewCircuitBreakerClient(next ports.LLMClient, maxFailures int, cooldown time.Duration) ports.LLMClient {
	return &circuitBreakerClient{next: next, cb: NewCircuitBreaker(maxFailures, cooldown)}
}

func (c *circuitBreakerClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	var result string
	err := c.cb.Call(func() error {
		var callErr error
		result, callErr = c.next.Complete(ctx, prompt, options)
		return callErr
	})
	return result, err
}

func (c *circuitBreakerClient) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	var result string
	var tokensIn, tokensOut int
	err := c.cb.Call(func() error {
		var callErr error
		result, tokensIn, tokensOut, callErr = c.next.CompleteWithUsage(ctx, prompt, options)
		return callErr
	})
	return result, tokensIn, tokensOut, err
}

func (c *circuitBreakerClient) EstimateTokens(text string) (int, error) { return c.next.EstimateTokens(text) }
func (c *circuitBreakerClient) GetModel() string                        { return c.next.GetModel() }

var _ ports.LLMClient = (*circuitBreakerClient)(nil)
