// Package kit holds the transport plumbing shared by the HTTP and MCP
// surfaces: a transport-agnostic Endpoint type and adapters that bind
// endpoints to concrete transports.
package kit

import "context"

// Endpoint is a transport-agnostic operation: typed request in, typed
// response out. HTTP handlers and MCP tools both terminate in one.
type Endpoint func(ctx context.Context, request any) (any, error)
