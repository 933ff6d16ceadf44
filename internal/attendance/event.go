package attendance

import (
	"encoding/json"
	"time"
)

// EventCheckIn is the queue message type published after a successful check-in.
const EventCheckIn = "checkin"

// CheckInEvent is the queued form of a new record.
type CheckInEvent struct {
	RecordID    string    `json:"recordId"`
	StudentID   string    `json:"studentId"`
	SessionTime string    `json:"sessionTime"`
	WeekNumber  int       `json:"weekNumber"`
	CheckInTime time.Time `json:"checkInTime"`
}

// EventFor builds the event for rec.
func EventFor(rec Record) CheckInEvent {
	return CheckInEvent{
		RecordID:    rec.ID,
		StudentID:   rec.StudentID,
		SessionTime: rec.SessionTime,
		WeekNumber:  rec.WeekNumber,
		CheckInTime: rec.CheckInTime,
	}
}

// Encode marshals the event for a queue body.
func (e CheckInEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a queue body.
func DecodeEvent(body []byte) (CheckInEvent, error) {
	var e CheckInEvent
	err := json.Unmarshal(body, &e)
	return e, err
}
