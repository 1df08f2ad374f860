package llm

import (
	"context"
)

// tracedLLM is a pass-through tracing hook. It records the service name
// but creates no spans: every request is forwarded unchanged to the
// wrapped implementation.
type tracedLLM struct {
	next        CoreLLM
	serviceName string
}

// TracingMiddleware creates middleware that wraps requests in a tracedLLM.
// The wrapper emits no trace data; it forwards each request and its
// result unchanged.
func TracingMiddleware(serviceName string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{
			next:        next,
			serviceName: serviceName,
		}
	}
}

// DoRequest forwards the request to the wrapped implementation and
// returns its result unchanged. No span is started or recorded; the
// OpenTelemetry calls below are commented out.
func (t *tracedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	// In a real implementation, this would integrate with OpenTelemetry or similar
	// For this example, we'll just pass through
	// span, ctx := tracer.Start(ctx, "llm.request",
	//     trace.WithAttributes(
	//         attribute.String("service.name", t.serviceName),
	//         attribute.String("llm.model", t.next.GetModel()),
	//         attribute.Int("llm.prompt.length", len(prompt)),
	//     ),
	// )
	// defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)

	// if err != nil {
	//     span.RecordError(err)
	//     span.SetStatus(codes.Error, err.Error())
	// } else {
	//     span.SetAttributes(
	//         attribute.Int("llm.tokens.input", tokensIn),
	//         attribute.Int("llm.tokens.output", tokensOut),
	//     )
	// }

	return response, tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
