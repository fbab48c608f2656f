package attendance

import (
	"context"
	"time"
)

// AttendanceRepository stores attendance rows. A "head" is the newest,
// not-deleted row of a day's correction chain.
type AttendanceRepository interface {
	// Create inserts a row. It returns ErrDuplicateDay when a root row for the
	// same user and day exists, and ErrRecordSuperseded when SourceID already
	// has a successor.
	Create(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error)

	// Update rewrites a head row in place when record.Version still matches,
	// otherwise ErrConcurrentUpdate.
	Update(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error)

	GetByID(ctx context.Context, id string, forUpdate bool) (AttendanceRecord, error)

	// GetSuccessor returns the row whose source is id, or nil.
	GetSuccessor(ctx context.Context, id string) (*AttendanceRecord, error)

	GetHeadByDate(ctx context.Context, userID string, workDate time.Time, forUpdate bool) (*AttendanceRecord, error)

	// GetLatestHead returns the head with the latest work date for the user.
	GetLatestHead(ctx context.Context, userID string, forUpdate bool) (*AttendanceRecord, error)

	// ListStaleOpen returns heads with an open session dated before cutoff.
	ListStaleOpen(ctx context.Context, cutoff time.Time) ([]AttendanceRecord, error)
}
