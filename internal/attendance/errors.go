package attendance

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is returned when a record cannot be written (or, under the strict
// dedup policy, when the duplicate lookup fails).
var ErrStoreUnavailable = errors.New("check-in failed, try again later")

// ErrNotFound means no record has the requested id.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by a Store when the (student, session, day) key already exists.
var ErrDuplicate = errors.New("duplicate attendance record")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Field + " is required"
	}
	return e.Field + " " + e.Reason
}

// WindowClosedError means no session is open right now.
type WindowClosedError struct {
	Config Config
}

func (e *WindowClosedError) Error() string {
	return "check-in is closed; it opens on " + e.Config.Describe()
}

// DuplicateCheckInError means the student already checked in to this session today.
type DuplicateCheckInError struct {
	Session string
}

func (e *DuplicateCheckInError) Error() string {
	return fmt.Sprintf("already checked in to the %s session today", e.Session)
}
