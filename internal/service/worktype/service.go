package worktype

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
)

type WorkTypeServiceImpl struct {
	worktype.WorkTypeRepository
	defaultTimezone string
}

// NewWorkTypeService builds the policy collaborator. defaultTimezone is the
// zone of the fallback policy and of work types created without one.
func NewWorkTypeService(repo worktype.WorkTypeRepository, defaultTimezone string) *WorkTypeServiceImpl {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &WorkTypeServiceImpl{WorkTypeRepository: repo, defaultTimezone: defaultTimezone}
}

// Create implements worktype.WorkTypeService.
func (s *WorkTypeServiceImpl) Create(ctx context.Context, req worktype.CreateWorkTypeRequest) (worktype.WorkType, error) {
	if err := req.Validate(); err != nil {
		return worktype.WorkType{}, err
	}

	wt := worktype.WorkType{
		Name:                     req.Name,
		ScheduledStart:           req.ScheduledStart,
		ScheduledEnd:             req.ScheduledEnd,
		GracePeriodMinutes:       req.GracePeriodMinutes,
		OvertimeThresholdMinutes: attendance.DefaultOvertimeThresholdMinutes,
		Timezone:                 req.Timezone,
	}
	if req.OvertimeThresholdMinutes != nil {
		wt.OvertimeThresholdMinutes = *req.OvertimeThresholdMinutes
	}
	if wt.Timezone == "" {
		wt.Timezone = s.defaultTimezone
	}

	created, err := s.WorkTypeRepository.Create(ctx, wt)
	if err != nil {
		return worktype.WorkType{}, err
	}
	slog.Info("work type created", "work_type_id", created.ID, "name", created.Name)
	return created, nil
}

// Get implements worktype.WorkTypeService.
func (s *WorkTypeServiceImpl) Get(ctx context.Context, id string) (worktype.WorkType, error) {
	return s.WorkTypeRepository.GetByID(ctx, id)
}

// Assign implements worktype.WorkTypeService.
func (s *WorkTypeServiceImpl) Assign(ctx context.Context, req worktype.AssignWorkTypeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := s.WorkTypeRepository.GetByID(ctx, req.WorkTypeID); err != nil {
		return err
	}
	if err := s.WorkTypeRepository.Assign(ctx, req.UserID, req.WorkTypeID); err != nil {
		return err
	}
	slog.Info("work type assigned", "user_id", req.UserID, "work_type_id", req.WorkTypeID)
	return nil
}

// Resolve implements worktype.WorkTypeService. An explicit id must exist; a
// user without an assignment gets the default policy.
func (s *WorkTypeServiceImpl) Resolve(ctx context.Context, userID string, workTypeID *string) (worktype.WorkType, error) {
	if workTypeID != nil && *workTypeID != "" {
		wt, err := s.WorkTypeRepository.GetByID(ctx, *workTypeID)
		if err != nil {
			return worktype.WorkType{}, fmt.Errorf("resolve work type %s: %w", *workTypeID, err)
		}
		return wt, nil
	}

	wt, err := s.WorkTypeRepository.GetAssigned(ctx, userID)
	if err != nil {
		if errors.Is(err, worktype.ErrWorkTypeNotFound) {
			return worktype.DefaultPolicy(s.defaultTimezone), nil
		}
		return worktype.WorkType{}, fmt.Errorf("resolve work type for user %s: %w", userID, err)
	}
	return wt, nil
}

// Stored implements worktype.WorkTypeService.
func (s *WorkTypeServiceImpl) Stored(ctx context.Context, workTypeID *string) (worktype.WorkType, error) {
	if workTypeID == nil || *workTypeID == "" {
		return worktype.DefaultPolicy(s.defaultTimezone), nil
	}
	wt, err := s.WorkTypeRepository.GetByID(ctx, *workTypeID)
	if err != nil {
		return worktype.WorkType{}, fmt.Errorf("load work type %s: %w", *workTypeID, err)
	}
	return wt, nil
}
