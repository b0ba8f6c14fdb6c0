package interfaces

import "context"

// Notifier pushes messages to every live subscriber.
// Delivery failures are handled by the implementation and never returned.
type Notifier interface {
	// Broadcast sends message and returns how many subscribers received it
	Broadcast(ctx context.Context, message interface{}) int
}
