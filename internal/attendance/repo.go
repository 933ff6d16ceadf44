package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const recordColumns = `id, student_id, student_name, student_email, check_in_time, check_in_day, session_time, week_number, status, notes`

// Repository persists attendance records in Postgres or SQLite.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo. Queries are written with ? and rebound for the driver.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindForDay returns the student's record for a session on a day, or nil.
func (r *Repository) FindForDay(ctx context.Context, studentID, session, day string) (*Record, error) {
	var rec Record
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE student_id = ? AND session_time = ? AND check_in_day = ?
		LIMIT 1
	`), studentID, session, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new record; a taken (student, session, day) key yields ErrDuplicate.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPresent
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`), rec.ID, rec.StudentID, rec.StudentName, rec.StudentEmail, rec.CheckInTime, rec.CheckInDay,
		rec.SessionTime, rec.WeekNumber, rec.Status, rec.Notes)
	if isUniqueViolation(err) {
		return Record{}, ErrDuplicate
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`SELECT `+recordColumns+` FROM attendance_records WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns records newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	f = f.normalize()
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	var (
		clauses []string
		args    []any
	)
	if f.StudentID != "" {
		clauses = append(clauses, "student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.WeekNumber > 0 {
		clauses = append(clauses, "week_number = ?")
		args = append(args, f.WeekNumber)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY check_in_time DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	res := []Record{}
	if err := r.db.SelectContext(ctx, &res, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateStatus sets status and notes after an admin review.
func (r *Repository) UpdateStatus(ctx context.Context, id, status, notes string) (Record, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE attendance_records SET status = ?, notes = ? WHERE id = ?
	`), status, notes, id)
	if err != nil {
		return Record{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Record{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (f Filter) normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
