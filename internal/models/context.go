package models

import (
	"context"
	"time"
)

type requestContextKey struct{}

// RequestContext carries per-delivery metadata from the transport into the
// assistant for log correlation.
type RequestContext struct {
	RequestId  string
	MessageId  string
	SenderId   string
	Channel    string
	ReceivedAt time.Time
}

// WithRequestContext attaches delivery metadata to a context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext retrieves delivery metadata from context, or nil if absent.
func GetRequestContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}
