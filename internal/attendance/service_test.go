package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines int
}

func (l *recordingLogger) Warnf(string, ...any) {
	l.mu.Lock()
	l.lines++
	l.mu.Unlock()
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func setup(t *testing.T, policy DedupPolicy) (*Service, *MemoryStore, *clock, *recordingLogger) {
	t.Helper()
	store := NewMemoryStore()
	clk := &clock{now: tuesday(15, 22)}
	lg := &recordingLogger{}
	svc := NewService(NewEngine(DefaultConfig(), time.UTC), store, policy, lg).WithClock(clk.Now)
	return svc, store, clk, lg
}

func student(id string) CheckInRequest {
	return CheckInRequest{StudentID: id, StudentName: "Student " + id, StudentEmail: id + "@club.test"}
}

func TestCheckInRecordsSession(t *testing.T) {
	svc, _, _, _ := setup(t, PreferAvailability)

	rec, err := svc.CheckIn(context.Background(), student("S1"))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "S1", rec.StudentID)
	assert.Equal(t, "15:20", rec.SessionTime)
	assert.Equal(t, "2026-01-06", rec.CheckInDay)
	assert.Equal(t, 1, rec.WeekNumber)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.Equal(t, tuesday(15, 22), rec.CheckInTime)
}

func TestCheckInOncePerSessionPerDay(t *testing.T) {
	svc, _, clk, _ := setup(t, PreferAvailability)
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, student("S1"))
	require.NoError(t, err)

	_, err = svc.CheckIn(ctx, student("S1"))
	var dup *DuplicateCheckInError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "15:20", dup.Session)

	_, err = svc.CheckIn(ctx, student("S2"))
	assert.NoError(t, err, "other students are unaffected")

	clk.now = tuesday(16, 36)
	rec, err := svc.CheckIn(ctx, student("S1"))
	require.NoError(t, err)
	assert.Equal(t, "16:35", rec.SessionTime)

	clk.now = tuesday(15, 21).AddDate(0, 0, 7)
	rec, err = svc.CheckIn(ctx, student("S1"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.WeekNumber)
}

func TestCheckInValidation(t *testing.T) {
	svc, _, _, _ := setup(t, PreferAvailability)
	tests := []struct {
		name  string
		req   CheckInRequest
		field string
	}{
		{"no id", CheckInRequest{StudentName: "A", StudentEmail: "a@x"}, "studentId"},
		{"no name", CheckInRequest{StudentID: "S1", StudentName: "  ", StudentEmail: "a@x"}, "studentName"},
		{"no email", CheckInRequest{StudentID: "S1", StudentName: "A"}, "studentEmail"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CheckIn(context.Background(), tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCheckInOutsideWindow(t *testing.T) {
	svc, store, clk, _ := setup(t, PreferAvailability)
	clk.now = tuesday(15, 25)

	_, err := svc.CheckIn(context.Background(), student("S1"))
	var closed *WindowClosedError
	require.ErrorAs(t, err, &closed)
	assert.Contains(t, err.Error(), "Tuesday 15:20-15:25 and 16:35-16:40")

	all, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCheckInDebugModeAnyTime(t *testing.T) {
	svc, _, clk, _ := setup(t, PreferAvailability)
	clk.now = time.Date(2026, 1, 10, 2, 0, 0, 0, time.UTC)
	svc.Engine().SetDebugMode(true)

	rec, err := svc.CheckIn(context.Background(), student("S1"))
	require.NoError(t, err)
	assert.Equal(t, DebugLabel, rec.SessionTime)
}

func TestCheckInLookupFailureAvailability(t *testing.T) {
	svc, store, _, lg := setup(t, PreferAvailability)
	store.FailLookups = errors.New("connection refused")

	rec, err := svc.CheckIn(context.Background(), student("S1"))
	require.NoError(t, err)
	assert.Equal(t, "15:20", rec.SessionTime)
	assert.Equal(t, 1, lg.lines)

	// the unique key still catches the duplicate the lookup could not see
	_, err = svc.CheckIn(context.Background(), student("S1"))
	var dup *DuplicateCheckInError
	assert.ErrorAs(t, err, &dup)
}

func TestCheckInLookupFailureStrict(t *testing.T) {
	svc, store, _, _ := setup(t, PreferStrict)
	store.FailLookups = errors.New("connection refused")

	_, err := svc.CheckIn(context.Background(), student("S1"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCheckInInsertFailure(t *testing.T) {
	svc, store, _, _ := setup(t, PreferAvailability)
	store.FailInserts = errors.New("disk full")

	_, err := svc.CheckIn(context.Background(), student("S1"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCheckInConcurrentSameStudent(t *testing.T) {
	svc, store, _, _ := setup(t, PreferAvailability)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckIn(context.Background(), student("S1"))
			var dup *DuplicateCheckInError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.As(err, &dup):
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 19, dups)
	all, err := store.List(context.Background(), Filter{StudentID: "S1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReview(t *testing.T) {
	svc, _, _, _ := setup(t, PreferAvailability)
	ctx := context.Background()
	rec, err := svc.CheckIn(ctx, student("S1"))
	require.NoError(t, err)

	updated, err := svc.Review(ctx, rec.ID, StatusLate, "arrived after roll call")
	require.NoError(t, err)
	assert.Equal(t, StatusLate, updated.Status)
	assert.Equal(t, "arrived after roll call", updated.Notes)

	got, err := svc.Record(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = svc.Review(ctx, rec.ID, "excused", "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Review(ctx, "missing", StatusAbsent, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseDedupPolicy(t *testing.T) {
	p, err := ParseDedupPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PreferAvailability, p)

	p, err = ParseDedupPolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, PreferStrict, p)

	_, err = ParseDedupPolicy("maybe")
	assert.Error(t, err)
}
