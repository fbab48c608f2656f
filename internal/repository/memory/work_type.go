package memory

import (
	"context"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
)

type workTypeRepository struct {
	store *Store
}

func NewWorkTypeRepository(store *Store) worktype.WorkTypeRepository {
	return &workTypeRepository{store: store}
}

// Create implements worktype.WorkTypeRepository.
func (r *workTypeRepository) Create(ctx context.Context, wt worktype.WorkType) (worktype.WorkType, error) {
	defer r.store.lock(ctx)()

	for _, existing := range r.store.workTypes {
		if existing.Name == wt.Name {
			return worktype.WorkType{}, worktype.ErrWorkTypeExists
		}
	}
	now := r.store.now()
	wt.ID = newID()
	wt.CreatedAt = now
	wt.UpdatedAt = now
	r.store.workTypes[wt.ID] = wt
	return wt, nil
}

// GetByID implements worktype.WorkTypeRepository.
func (r *workTypeRepository) GetByID(ctx context.Context, id string) (worktype.WorkType, error) {
	defer r.store.lock(ctx)()

	wt, ok := r.store.workTypes[id]
	if !ok {
		return worktype.WorkType{}, worktype.ErrWorkTypeNotFound
	}
	return wt, nil
}

// Assign implements worktype.WorkTypeRepository.
func (r *workTypeRepository) Assign(ctx context.Context, userID string, workTypeID string) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.workTypes[workTypeID]; !ok {
		return worktype.ErrWorkTypeNotFound
	}
	r.store.assignments[userID] = workTypeID
	return nil
}

// GetAssigned implements worktype.WorkTypeRepository.
func (r *workTypeRepository) GetAssigned(ctx context.Context, userID string) (worktype.WorkType, error) {
	defer r.store.lock(ctx)()

	id, ok := r.store.assignments[userID]
	if !ok {
		return worktype.WorkType{}, worktype.ErrWorkTypeNotFound
	}
	wt, ok := r.store.workTypes[id]
	if !ok {
		return worktype.WorkType{}, worktype.ErrWorkTypeNotFound
	}
	return wt, nil
}
