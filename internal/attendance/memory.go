package attendance

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory for dev and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	keys    map[string]string

	// FailLookups makes FindForDay fail with this error when set.
	FailLookups error
	// FailInserts makes Insert fail with this error when set.
	FailInserts error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), keys: make(map[string]string)}
}

func dayKey(studentID, session, day string) string {
	return studentID + "\x00" + session + "\x00" + day
}

// FindForDay returns the student's record for a session on a day, or nil.
func (m *MemoryStore) FindForDay(_ context.Context, studentID, session, day string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLookups != nil {
		return nil, m.FailLookups
	}
	id, ok := m.keys[dayKey(studentID, session, day)]
	if !ok {
		return nil, nil
	}
	rec := m.records[id]
	return &rec, nil
}

// Insert adds a record, enforcing the (student, session, day) key.
func (m *MemoryStore) Insert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInserts != nil {
		return Record{}, m.FailInserts
	}
	key := dayKey(rec.StudentID, rec.SessionTime, rec.CheckInDay)
	if _, taken := m.keys[key]; taken {
		return Record{}, ErrDuplicate
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	m.records[rec.ID] = rec
	m.keys[key] = rec.ID
	return rec, nil
}

// Get returns a single record by id.
func (m *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns records newest first.
func (m *MemoryStore) List(_ context.Context, f Filter) ([]Record, error) {
	f = f.normalize()
	m.mu.Lock()
	res := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		if f.StudentID != "" && rec.StudentID != f.StudentID {
			continue
		}
		if f.WeekNumber > 0 && rec.WeekNumber != f.WeekNumber {
			continue
		}
		res = append(res, rec)
	}
	m.mu.Unlock()

	sort.Slice(res, func(i, j int) bool { return res[i].CheckInTime.After(res[j].CheckInTime) })
	if f.Offset >= len(res) {
		return []Record{}, nil
	}
	res = res[f.Offset:]
	if len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

// UpdateStatus sets status and notes after an admin review.
func (m *MemoryStore) UpdateStatus(_ context.Context, id, status, notes string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Status = status
	rec.Notes = notes
	m.records[id] = rec
	return rec, nil
}
