// Package kit holds the small transport-agnostic pieces shared by the
// daemon's HTTP and MCP surfaces: the Endpoint abstraction, middleware
// chaining, and request-scoped context values.
package kit

import "context"

// Endpoint is a transport-agnostic request handler. HTTP handlers and
// MCP tools both decode into a typed request and call an Endpoint.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first argument is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
