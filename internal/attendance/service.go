package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"clubattendance/internal/metrics"
)

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	return s == StatusPresent || s == StatusLate || s == StatusAbsent
}

// Record is a persisted check-in.
type Record struct {
	ID           string    `json:"id" db:"id"`
	StudentID    string    `json:"studentId" db:"student_id"`
	StudentName  string    `json:"studentName" db:"student_name"`
	StudentEmail string    `json:"studentEmail" db:"student_email"`
	CheckInTime  time.Time `json:"checkInTime" db:"check_in_time"`
	CheckInDay   string    `json:"checkInDay" db:"check_in_day"`
	SessionTime  string    `json:"sessionTime" db:"session_time"`
	WeekNumber   int       `json:"weekNumber" db:"week_number"`
	Status       string    `json:"status" db:"status"`
	Notes        string    `json:"notes,omitempty" db:"notes"`
}

// Filter narrows a record listing. Zero values mean "any".
type Filter struct {
	StudentID  string
	WeekNumber int
	Limit      int
	Offset     int
}

// Store persists records. Insert must return ErrDuplicate when the
// (StudentID, SessionTime, CheckInDay) key is taken.
type Store interface {
	FindForDay(ctx context.Context, studentID, session, day string) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	UpdateStatus(ctx context.Context, id, status, notes string) (Record, error)
}

// DedupPolicy decides what happens when the duplicate lookup itself fails.
type DedupPolicy string

const (
	// PreferAvailability logs the lookup failure and attempts the insert anyway.
	PreferAvailability DedupPolicy = "availability"
	// PreferStrict rejects the check-in with ErrStoreUnavailable.
	PreferStrict DedupPolicy = "strict"
)

// ParseDedupPolicy maps a config string to a policy.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch DedupPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PreferAvailability:
		return PreferAvailability, nil
	case PreferStrict:
		return PreferStrict, nil
	}
	return "", &ValidationError{Field: "DEDUP_POLICY", Reason: "must be availability or strict"}
}

// Logger is the subset of logging the service needs.
type Logger interface {
	Warnf(format string, args ...any)
}

// CheckInRequest is the identity a student checks in with.
type CheckInRequest struct {
	StudentID    string
	StudentName  string
	StudentEmail string
}

// Service coordinates window checks and deduplication.
type Service struct {
	engine *Engine
	store  Store
	policy DedupPolicy
	log    Logger
	now    func() time.Time
}

// NewService creates a service backed by a store.
func NewService(engine *Engine, store Store, policy DedupPolicy, log Logger) *Service {
	if policy == "" {
		policy = PreferAvailability
	}
	return &Service{engine: engine, store: store, policy: policy, log: log, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Engine exposes the window engine the service evaluates against.
func (s *Service) Engine() *Engine { return s.engine }

// Now returns the service's current time.
func (s *Service) Now() time.Time { return s.now() }

// CheckIn records a check-in for the open session, at most once per student per session per day.
func (s *Service) CheckIn(ctx context.Context, req CheckInRequest) (Record, error) {
	if err := req.validate(); err != nil {
		return Record{}, err
	}

	now := s.now()
	session := s.engine.CurrentSession(now)
	if session == nil {
		return Record{}, &WindowClosedError{Config: s.engine.Config()}
	}
	day := s.engine.Day(now)

	existing, err := s.store.FindForDay(ctx, req.StudentID, session.Label, day)
	switch {
	case err != nil && s.policy == PreferStrict:
		return Record{}, errors.Join(ErrStoreUnavailable, err)
	case err != nil:
		metrics.DedupLookupFailures.Inc()
		if s.log != nil {
			s.log.Warnf("duplicate check failed for %s/%s, inserting anyway: %v", req.StudentID, session.Label, err)
		}
	case existing != nil:
		return Record{}, &DuplicateCheckInError{Session: session.Label}
	}

	rec, err := s.store.Insert(ctx, Record{
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
		CheckInTime:  now.UTC(),
		CheckInDay:   day,
		SessionTime:  session.Label,
		WeekNumber:   s.engine.WeekNumber(now),
		Status:       StatusPresent,
	})
	if errors.Is(err, ErrDuplicate) {
		return Record{}, &DuplicateCheckInError{Session: session.Label}
	}
	if err != nil {
		return Record{}, errors.Join(ErrStoreUnavailable, err)
	}
	return rec, nil
}

// Records lists stored check-ins.
func (s *Service) Records(ctx context.Context, f Filter) ([]Record, error) {
	return s.store.List(ctx, f)
}

// Record returns a single check-in.
func (s *Service) Record(ctx context.Context, id string) (Record, error) {
	return s.store.Get(ctx, id)
}

// Review changes the status and notes of a record.
func (s *Service) Review(ctx context.Context, id, status, notes string) (Record, error) {
	if !ValidStatus(status) {
		return Record{}, &ValidationError{Field: "status", Reason: "must be present, late or absent"}
	}
	return s.store.UpdateStatus(ctx, id, status, notes)
}

func (r CheckInRequest) validate() error {
	switch {
	case strings.TrimSpace(r.StudentID) == "":
		return &ValidationError{Field: "studentId"}
	case strings.TrimSpace(r.StudentName) == "":
		return &ValidationError{Field: "studentName"}
	case strings.TrimSpace(r.StudentEmail) == "":
		return &ValidationError{Field: "studentEmail"}
	}
	return nil
}
