package worktype

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/worktype"
	"github.com/cmlabs-hris/hris-timekeeping/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *WorkTypeServiceImpl {
	return NewWorkTypeService(memory.NewWorkTypeRepository(memory.NewStore()), "Asia/Jakarta")
}

func TestWorkTypeService_Create(t *testing.T) {
	// Setup
	svc := newService()
	ctx := context.Background()
	threshold := 420

	// Act
	wt, err := svc.Create(ctx, worktype.CreateWorkTypeRequest{
		Name:                     "shift",
		ScheduledStart:           "22:00",
		ScheduledEnd:             "06:00",
		OvertimeThresholdMinutes: &threshold,
	})
	_, dupErr := svc.Create(ctx, worktype.CreateWorkTypeRequest{Name: "shift"})

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, wt.ID)
	assert.Equal(t, 420, wt.OvertimeThresholdMinutes)
	assert.Equal(t, "Asia/Jakarta", wt.Timezone)
	assert.ErrorIs(t, dupErr, worktype.ErrWorkTypeExists)
}

func TestWorkTypeService_Resolve(t *testing.T) {
	// Setup
	svc := newService()
	ctx := context.Background()
	office, err := svc.Create(ctx, worktype.CreateWorkTypeRequest{Name: "office", ScheduledStart: "09:00", ScheduledEnd: "17:00"})
	require.NoError(t, err)
	remote, err := svc.Create(ctx, worktype.CreateWorkTypeRequest{Name: "remote"})
	require.NoError(t, err)
	require.NoError(t, svc.Assign(ctx, worktype.AssignWorkTypeRequest{UserID: "u1", WorkTypeID: office.ID}))

	t.Run("unassigned user gets default", func(t *testing.T) {
		wt, err := svc.Resolve(ctx, "u2", nil)
		require.NoError(t, err)
		assert.True(t, wt.IsDefault())
		assert.Equal(t, "Asia/Jakarta", wt.Timezone)
	})

	t.Run("assignment", func(t *testing.T) {
		wt, err := svc.Resolve(ctx, "u1", nil)
		require.NoError(t, err)
		assert.Equal(t, office.ID, wt.ID)
	})

	t.Run("explicit id wins", func(t *testing.T) {
		wt, err := svc.Resolve(ctx, "u1", &remote.ID)
		require.NoError(t, err)
		assert.Equal(t, remote.ID, wt.ID)
	})

	t.Run("unknown explicit id", func(t *testing.T) {
		missing := "missing"
		_, err := svc.Resolve(ctx, "u1", &missing)
		assert.ErrorIs(t, err, worktype.ErrWorkTypeNotFound)
	})
}

func TestWorkTypeService_AssignUnknown(t *testing.T) {
	// Setup
	svc := newService()

	// Act
	err := svc.Assign(context.Background(), worktype.AssignWorkTypeRequest{UserID: "u1", WorkTypeID: "missing"})

	// Assert
	assert.ErrorIs(t, err, worktype.ErrWorkTypeNotFound)
}

func TestWorkTypeService_StoredIgnoresAssignment(t *testing.T) {
	// Setup
	svc := newService()
	ctx := context.Background()
	office, err := svc.Create(ctx, worktype.CreateWorkTypeRequest{Name: "office"})
	require.NoError(t, err)
	require.NoError(t, svc.Assign(ctx, worktype.AssignWorkTypeRequest{UserID: "u1", WorkTypeID: office.ID}))
	missing := "missing"

	// Act
	fallback, fallbackErr := svc.Stored(ctx, nil)
	saved, savedErr := svc.Stored(ctx, &office.ID)
	_, missingErr := svc.Stored(ctx, &missing)

	// Assert
	require.NoError(t, fallbackErr)
	assert.True(t, fallback.IsDefault())
	assert.Equal(t, 480, fallback.OvertimeThresholdMinutes)
	require.NoError(t, savedErr)
	assert.Equal(t, office.ID, saved.ID)
	assert.ErrorIs(t, missingErr, worktype.ErrWorkTypeNotFound)
}
