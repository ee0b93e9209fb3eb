package appointment

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/schedule"
)

const pgTestDate = "2031-03-04"

var morning = schedule.Range{Start: "09:00", End: "12:00"}

// newPgRepository connects to POSTGRES_DSN. Each test gets its own doctor so
// runs do not interfere, and the doctor's day is purged afterwards.
func newPgRepository(t *testing.T) (*PgRepository, uuid.UUID) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.WithMaxConns(20))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, pool))

	repo := NewPgRepository(pool)
	doctorID := uuid.New()
	t.Cleanup(func() {
		_, _ = repo.PurgeDay(context.Background(), doctorID, pgTestDate)
		pool.Close()
	})
	return repo, doctorID
}

func pgBookingParams(doctorID uuid.UUID, start string, capacity int) BookingParams {
	end, _ := schedule.AddMinutes(start, 15)
	return BookingParams{
		Appointment: &Appointment{
			ID:          uuid.New(),
			ReferenceNo: newReferenceNo(pgTestDate),
			PatientID:   uuid.New(),
			DoctorID:    doctorID,
			Date:        pgTestDate,
			StartTime:   start,
			EndTime:     end,
			Status:      StatusBooked,
		},
		Session:  morning,
		Capacity: capacity,
	}
}

func runConcurrently(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()
	return errs
}

func TestPgRepository_ConcurrentBookingsRespectCapacity(t *testing.T) {
	repo, doctorID := newPgRepository(t)
	ctx := context.Background()

	slots, err := schedule.GenerateSlots([]schedule.Range{morning}, 15)
	require.NoError(t, err)

	errs := runConcurrently(len(slots), func(i int) error {
		_, err := repo.Book(ctx, pgBookingParams(doctorID, slots[i].StartTime, 3))
		return err
	})

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSessionFull):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, succeeded)

	active, err := repo.ListActiveByDoctorDate(ctx, doctorID, pgTestDate)
	require.NoError(t, err)
	require.Len(t, active, 3)
	queue := map[int]bool{}
	for _, a := range active {
		queue[a.QueueNo] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, queue)
}

func TestPgRepository_SameSlotHasOneWinner(t *testing.T) {
	repo, doctorID := newPgRepository(t)
	ctx := context.Background()

	errs := runConcurrently(8, func(int) error {
		_, err := repo.Book(ctx, pgBookingParams(doctorID, "10:00", 10))
		return err
	})

	succeeded, taken := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSlotTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, taken)
}

func TestPgRepository_Reschedule(t *testing.T) {
	repo, doctorID := newPgRepository(t)
	ctx := context.Background()

	first, err := repo.Book(ctx, pgBookingParams(doctorID, "09:00", 2))
	require.NoError(t, err)
	_, err = repo.Book(ctx, pgBookingParams(doctorID, "09:15", 2))
	require.NoError(t, err)

	// moving within its own full session excludes itself from the count
	moved, err := repo.Reschedule(ctx, first.ID, ReschedulePlan{
		Date: pgTestDate, StartTime: "11:00", EndTime: "11:15", Session: morning, Capacity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "11:00", moved.StartTime)
	assert.Equal(t, 2, moved.QueueNo)
	assert.Equal(t, StatusBooked, moved.Status)

	// the slot is held by the other appointment
	_, err = repo.Reschedule(ctx, first.ID, ReschedulePlan{
		Date: pgTestDate, StartTime: "09:15", EndTime: "09:30", Session: morning, Capacity: 3,
	})
	assert.ErrorIs(t, err, ErrSlotTaken)

	extra := pgBookingParams(doctorID, "10:00", 3)
	extra.Session = schedule.Range{Start: "10:00", End: "12:00"}
	_, err = repo.Book(ctx, extra)
	require.NoError(t, err)
	_, err = repo.Reschedule(ctx, first.ID, ReschedulePlan{
		Date: pgTestDate, StartTime: "10:30", EndTime: "10:45", Session: morning, Capacity: 2,
	})
	assert.ErrorIs(t, err, ErrSessionFull)

	_, err = repo.Reschedule(ctx, uuid.New(), ReschedulePlan{
		Date: pgTestDate, StartTime: "09:30", EndTime: "09:45", Session: morning, Capacity: 2,
	})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgRepository_PurgeDayReturnsDeletedRows(t *testing.T) {
	repo, doctorID := newPgRepository(t)
	ctx := context.Background()

	for _, start := range []string{"09:00", "09:15"} {
		_, err := repo.Book(ctx, pgBookingParams(doctorID, start, 5))
		require.NoError(t, err)
	}

	removed, err := repo.PurgeDay(ctx, doctorID, pgTestDate)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	left, err := repo.ListByDoctorDate(ctx, doctorID, pgTestDate)
	require.NoError(t, err)
	assert.Empty(t, left)
}
