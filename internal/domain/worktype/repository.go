package worktype

import "context"

type WorkTypeRepository interface {
	Create(ctx context.Context, workType WorkType) (WorkType, error)
	GetByID(ctx context.Context, id string) (WorkType, error)

	// Assign sets the work type used for a user's future days
	Assign(ctx context.Context, userID string, workTypeID string) error

	// GetAssigned returns ErrWorkTypeNotFound when the user has no assignment
	GetAssigned(ctx context.Context, userID string) (WorkType, error)
}
