package worktype

import (
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/validator"
)

type CreateWorkTypeRequest struct {
	Name                     string `json:"name" validate:"required,max=100"`
	ScheduledStart           string `json:"scheduled_start" validate:"omitempty,hhmm"`
	ScheduledEnd             string `json:"scheduled_end" validate:"omitempty,hhmm"`
	GracePeriodMinutes       int    `json:"grace_period_minutes" validate:"min=0,max=720"`
	OvertimeThresholdMinutes *int   `json:"overtime_threshold_minutes" validate:"omitempty,min=0,max=1440"`
	Timezone                 string `json:"timezone" validate:"omitempty,iana_tz"`
}

func (r *CreateWorkTypeRequest) Validate() error {
	if err := validator.Struct(r); err != nil {
		return err
	}

	var errs validator.ValidationErrors
	if (r.ScheduledStart == "") != (r.ScheduledEnd == "") {
		errs = append(errs, validator.ValidationError{
			Field:   "scheduled_end",
			Message: "scheduled_start and scheduled_end must be set together",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type AssignWorkTypeRequest struct {
	UserID     string `json:"-" validate:"required"`
	WorkTypeID string `json:"-" validate:"required"`
}

func (r *AssignWorkTypeRequest) Validate() error {
	return validator.Struct(r)
}
