package notification

import "context"

// Notifier receives status changes. Delivery is fire-and-forget: it never
// reports failure to the caller.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, change StatusChange)
}

// Sink is one delivery channel behind the notifier.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, change StatusChange) error
}
