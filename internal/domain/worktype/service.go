package worktype

import "context"

type WorkTypeService interface {
	Create(ctx context.Context, req CreateWorkTypeRequest) (WorkType, error)
	Get(ctx context.Context, id string) (WorkType, error)
	Assign(ctx context.Context, req AssignWorkTypeRequest) error

	// Resolve picks the explicit work type, then the user's assignment, then
	// the default policy
	Resolve(ctx context.Context, userID string, workTypeID *string) (WorkType, error)

	// Stored returns the policy a saved day was derived with: its work type,
	// or the default policy when it has none. Assignments are not consulted.
	Stored(ctx context.Context, workTypeID *string) (WorkType, error)
}
