// Package requestctx holds request-scoped values set by middleware and read by
// services, without pulling net/http into the services.
package requestctx

import "context"

type (
	clientIPKey  struct{}
	userAgentKey struct{}
)

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

// WithClientMetadata injects the client IP and raw User-Agent header.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}
