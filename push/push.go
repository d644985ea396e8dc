// Package push delivers server-to-client messages over open websocket
// connections. The gateway process owns the Hub; the worker process reaches
// the same connections through an HTTP callback endpoint exposed by the
// gateway, so both sides program against the Sender interface.
package push

import "context"

// Sender pushes a payload to a single connection. A closed remote end is
// reported as domain.ErrGone, which callers treat as benign.
type Sender interface {
	SendTo(ctx context.Context, connectionID string, data []byte) error
}
