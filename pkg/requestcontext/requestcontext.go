// Package requestcontext carries per-request metadata (request ID, client IP,
// user agent) through context so handlers and services can log consistently
// without threading extra parameters.
package requestcontext

import "context"

type contextKeyRequestID struct{}
type contextKeyClientIP struct{}
type contextKeyUserAgent struct{}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the request ID from the context, or "" when absent.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata returns a context carrying the client IP and user agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, ip)
	return context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
}

// ClientIP returns the client IP from the context, or "" when absent.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyClientIP{}).(string); ok {
		return v
	}
	return ""
}

// UserAgent returns the client user agent from the context, or "" when absent.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyUserAgent{}).(string); ok {
		return v
	}
	return ""
}
