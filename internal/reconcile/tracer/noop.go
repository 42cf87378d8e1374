package tracer

import "context"

// NoopTracer discards all spans. It is the default when no tracer is wired.
type NoopTracer struct{}

// NewNoop creates a tracer that records nothing.
func NewNoop() *NoopTracer {
	return &NoopTracer{}
}

func (NoopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                     {}
func (noopSpan) SetAttributes(...Attribute)    {}
func (noopSpan) AddEvent(string, ...Attribute) {}

var (
	_ Tracer = (*NoopTracer)(nil)
	_ Span   = noopSpan{}
)
