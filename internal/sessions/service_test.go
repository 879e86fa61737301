package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayursutra/therapy-portal/pkg/logging"
)

func newTestService(t *testing.T, opts Options) (*Service, *InMemoryRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return NewService(repo, logging.Default(), nil, opts), repo
}

func TestCreateScheduledSession(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	created, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
		Duration:    60,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user_p1", created.PatientID)
	assert.Equal(t, "user_d1", created.DoctorID)
	assert.Equal(t, StatusScheduled, created.Status)
	assert.Equal(t, time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC), created.EndTime)
	assert.True(t, created.EndTime.After(created.StartTime))
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateDoctorInitiated(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	created, err := svc.Create(context.Background(), "user_d1", RoleDoctor, &CreateSessionRequest{
		PatientID:   "user_p9",
		TherapyType: "Shirodhara",
		StartTime:   "2024-01-10T11:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "user_p9", created.PatientID)
	assert.Equal(t, "user_d1", created.DoctorID)
}

func TestCreateRejectsCallerWithoutRole(t *testing.T) {
	svc, repo := newTestService(t, Options{})

	// A fresh signup has no role yet. Both body ids must be distrusted;
	// otherwise the caller could book on behalf of arbitrary users.
	_, err := svc.Create(context.Background(), "user_norole", "", &CreateSessionRequest{
		PatientID:   "user_victim_p",
		DoctorID:    "user_victim_d",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = svc.Create(context.Background(), "user_norole", "admin", &CreateSessionRequest{
		PatientID:   "user_victim_p",
		DoctorID:    "user_victim_d",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	assert.ErrorIs(t, err, ErrUnknownRole)

	items, err := repo.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateLeavesRequestUntouched(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	req := &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
	}
	created, err := svc.Create(context.Background(), "user_p1", RolePatient, req)
	require.NoError(t, err)
	assert.Equal(t, "user_p1", created.PatientID)
	assert.Empty(t, req.PatientID, "the caller's request value must not be mutated")
}

func TestCreateInvalidDurationPersistsNothing(t *testing.T) {
	svc, repo := newTestService(t, Options{})

	_, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
		Duration:    10,
	})
	verrs, ok := AsValidationErrors(err)
	require.True(t, ok, "expected validation errors, got %v", err)
	assert.Equal(t, "duration", verrs[0].Path)

	items, err := repo.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, items, "no record may be persisted after a validation failure")
}

func TestConcurrentOverlappingBookingsBothSucceed(t *testing.T) {
	// Documents the unguarded-overlap behavior with conflict checking off.
	svc, repo := newTestService(t, Options{ConflictCheck: false})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
				DoctorID:    "user_d1",
				TherapyType: "Swedana",
				StartTime:   "2024-01-10T09:00:00Z",
				Duration:    60,
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	items, _ := repo.List(context.Background(), ListFilter{DoctorID: "user_d1"})
	assert.Len(t, items, 2)
}

func TestConflictCheckRejectsOverlap(t *testing.T) {
	svc, _ := newTestService(t, Options{ConflictCheck: true})

	_, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
		Duration:    60,
	})
	require.NoError(t, err)

	// Overlapping slot for the same doctor is rejected.
	_, err = svc.Create(context.Background(), "user_p2", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Nasya",
		StartTime:   "2024-01-10T09:30:00Z",
		Duration:    60,
	})
	assert.ErrorIs(t, err, ErrSlotConflict)

	// Same slot with a different doctor is fine.
	_, err = svc.Create(context.Background(), "user_p2", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d2",
		TherapyType: "Nasya",
		StartTime:   "2024-01-10T09:30:00Z",
		Duration:    60,
	})
	assert.NoError(t, err)

	// Back-to-back slots do not conflict.
	_, err = svc.Create(context.Background(), "user_p3", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Basti",
		StartTime:   "2024-01-10T10:00:00Z",
		Duration:    60,
	})
	assert.NoError(t, err)
}

func TestConflictCheckIgnoresCancelledSessions(t *testing.T) {
	svc, _ := newTestService(t, Options{ConflictCheck: true})

	created, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), created.ID, "user_p1", RolePatient, ActionCancel)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "user_p2", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	assert.NoError(t, err, "cancelled sessions must not block the slot")
}

func TestCompleteByOwningDoctor(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	created, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Panchakarma",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	require.NoError(t, err)

	updated, err := svc.Transition(context.Background(), created.ID, "user_d1", RoleDoctor, ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
}

func TestCompleteByWrongDoctorIsNotFound(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	created, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Panchakarma",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	require.NoError(t, err)

	updated, err := svc.Transition(context.Background(), created.ID, "user_d2", RoleDoctor, ActionComplete)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Nil(t, updated, "a foreign session must never be returned")
}

func TestCancelByOwnership(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	created, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Swedana",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	require.NoError(t, err)

	// A different patient cannot cancel.
	_, err = svc.Transition(context.Background(), created.ID, "user_p2", RolePatient, ActionCancel)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// The conducting doctor can.
	updated, err := svc.Transition(context.Background(), created.ID, "user_d1", RoleDoctor, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
}

func TestDoubleCancelIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	created, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Swedana",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	require.NoError(t, err)

	first, err := svc.Transition(context.Background(), created.ID, "user_p1", RolePatient, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, first.Status)

	second, err := svc.Transition(context.Background(), created.ID, "user_p1", RolePatient, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, second.Status)
}

func TestTransitionInvalidAction(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.Transition(context.Background(), "some-id", "user_p1", RolePatient, Action("reschedule"))
	assert.True(t, errors.Is(err, ErrInvalidAction))
}

func TestListOrdersAscendingByStartTime(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	for _, start := range []string{
		"2024-01-12T09:00:00Z",
		"2024-01-10T09:00:00Z",
		"2024-01-11T09:00:00Z",
	} {
		_, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
			DoctorID:    "user_d1",
			TherapyType: "Abhyanga",
			StartTime:   start,
		})
		require.NoError(t, err)
	}

	items, err := svc.List(context.Background(), "user_p1", RolePatient, "")
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i := 1; i < len(items); i++ {
		assert.True(t, items[i-1].StartTime.Before(items[i].StartTime))
	}
}

func TestListDateFilterDayWindow(t *testing.T) {
	svc, _ := newTestService(t, Options{Location: time.UTC})

	for _, start := range []string{
		"2024-01-09T23:59:00Z", // day before
		"2024-01-10T00:00:00Z", // start of day, inclusive
		"2024-01-10T12:00:00Z",
		"2024-01-10T23:59:59Z", // end of day, inclusive
		"2024-01-11T00:00:00Z", // day after
	} {
		_, err := svc.Create(context.Background(), "user_d1", RoleDoctor, &CreateSessionRequest{
			PatientID:   "user_p1",
			TherapyType: "Shirodhara",
			StartTime:   start,
		})
		require.NoError(t, err)
	}

	items, err := svc.List(context.Background(), "user_d1", RoleDoctor, "2024-01-10")
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, s := range items {
		assert.Equal(t, 10, s.StartTime.Day())
	}
}

func TestListDateFilterOnDSTTransitionDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	svc, _ := newTestService(t, Options{Location: loc})

	// 2025-03-09 springs forward (23 hours); 2025-11-02 falls back (25
	// hours). The window must cover the calendar day, not start+24h.
	for _, start := range []string{
		"2025-03-09T23:30:00-04:00", // late on the short day
		"2025-03-10T00:30:00-04:00", // first half hour of the next day
		"2025-11-02T23:30:00-05:00", // 25th hour of the long day
	} {
		_, err := svc.Create(context.Background(), "user_d1", RoleDoctor, &CreateSessionRequest{
			PatientID:   "user_p1",
			TherapyType: "Shirodhara",
			StartTime:   start,
		})
		require.NoError(t, err)
	}

	items, err := svc.List(context.Background(), "user_d1", RoleDoctor, "2025-03-09")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 9, items[0].StartTime.In(loc).Day())

	items, err = svc.List(context.Background(), "user_d1", RoleDoctor, "2025-11-02")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].StartTime.In(loc).Day())
}

func TestListViewsAreScopedToCaller(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	_, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Abhyanga",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	require.NoError(t, err)

	items, err := svc.List(context.Background(), "user_p2", RolePatient, "")
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = svc.List(context.Background(), "user_d1", RoleDoctor, "")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestListRejectsMalformedDate(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.List(context.Background(), "user_p1", RolePatient, "January 10th")
	verrs, ok := AsValidationErrors(err)
	require.True(t, ok)
	assert.Equal(t, "date", verrs[0].Path)
}

func TestUpdateProgress(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	created, err := svc.Create(context.Background(), "user_p1", RolePatient, &CreateSessionRequest{
		DoctorID:    "user_d1",
		TherapyType: "Basti",
		StartTime:   "2024-01-10T09:00:00Z",
	})
	require.NoError(t, err)

	progress := 40
	followUp := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateProgress(context.Background(), created.ID, "user_d1", &UpdateProgressRequest{
		Notes:    "responding well to treatment",
		Progress: &progress,
		FollowUp: &followUp,
	})
	require.NoError(t, err)
	assert.Equal(t, "responding well to treatment", updated.Notes)
	require.NotNil(t, updated.Progress)
	assert.Equal(t, 40, *updated.Progress)

	// Wrong doctor sees not found.
	_, err = svc.UpdateProgress(context.Background(), created.ID, "user_d2", &UpdateProgressRequest{Notes: "x"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Out-of-range progress is a validation error.
	bad := 150
	_, err = svc.UpdateProgress(context.Background(), created.ID, "user_d1", &UpdateProgressRequest{Progress: &bad})
	_, ok := AsValidationErrors(err)
	assert.True(t, ok)
}
