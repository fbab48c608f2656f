package audit

import "context"

// Recorder writes audit events. Callers log failures and carry on.
type Recorder interface {
	Record(ctx context.Context, events ...Event) error
}
