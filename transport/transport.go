// Package transport defines the network capability consumed by authority
// resolution and provides the default HTTP implementation. Timeouts and
// cancellation belong to the transport; callers wrap transport errors
// without interpreting them and never retry.
package transport

import "context"

// Client performs JSON document requests against identity-provider hosts.
type Client interface {
	// GetJSON fetches rawURL and decodes the JSON response body into out.
	GetJSON(ctx context.Context, rawURL string, out any) error
	// PostJSON sends body as JSON to rawURL and decodes the response into out.
	PostJSON(ctx context.Context, rawURL string, body any, out any) error
}
