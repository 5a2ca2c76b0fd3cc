// Package broadcast defines the port for pushing events to connected clients.
package broadcast

import "context"

// Broadcaster fan-outs an event to every connected client.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Nop is a Broadcaster that drops every event.
type Nop struct{}

// BroadcastEvent implements Broadcaster.
func (Nop) BroadcastEvent(context.Context, string, any) {}
