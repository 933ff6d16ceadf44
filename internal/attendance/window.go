package attendance

import (
	"fmt"
	"sync"
	"time"
)

// DebugLabel is the session label reported while debug mode is on.
const DebugLabel = "DEBUG"

const debugMinutes = 5

const dateLayout = "2006-01-02"

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t ClockTime) minuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// Config describes when check-in is allowed.
// Sessions must not overlap; nothing here checks that.
type Config struct {
	DayOfWeek        int       `json:"dayOfWeek"`
	Session1Start    ClockTime `json:"session1Start"`
	Session1Duration int       `json:"session1Duration"`
	Session2Start    ClockTime `json:"session2Start"`
	Session2Duration int       `json:"session2Duration"`
	WeekStartDate    string    `json:"weekStartDate"`
}

// DefaultConfig is the schedule a fresh process starts with.
func DefaultConfig() Config {
	return Config{
		DayOfWeek:        int(time.Tuesday),
		Session1Start:    ClockTime{Hour: 15, Minute: 20},
		Session1Duration: 5,
		Session2Start:    ClockTime{Hour: 16, Minute: 35},
		Session2Duration: 5,
		WeekStartDate:    "2026-01-06",
	}
}

// ConfigPatch carries the fields of an update-config action. Nil fields are left untouched.
type ConfigPatch struct {
	DayOfWeek        *int       `json:"dayOfWeek"`
	Session1Start    *ClockTime `json:"session1Start"`
	Session1Duration *int       `json:"session1Duration"`
	Session2Start    *ClockTime `json:"session2Start"`
	Session2Duration *int       `json:"session2Duration"`
	WeekStartDate    *string    `json:"weekStartDate"`
}

// Apply returns cfg with the patch merged in.
func (p ConfigPatch) Apply(cfg Config) (Config, error) {
	if p.DayOfWeek != nil {
		cfg.DayOfWeek = *p.DayOfWeek
	}
	if p.Session1Start != nil {
		cfg.Session1Start = *p.Session1Start
	}
	if p.Session1Duration != nil {
		cfg.Session1Duration = *p.Session1Duration
	}
	if p.Session2Start != nil {
		cfg.Session2Start = *p.Session2Start
	}
	if p.Session2Duration != nil {
		cfg.Session2Duration = *p.Session2Duration
	}
	if p.WeekStartDate != nil {
		if _, err := time.Parse(dateLayout, *p.WeekStartDate); err != nil {
			return cfg, &ValidationError{Field: "weekStartDate", Reason: "must be a YYYY-MM-DD date"}
		}
		cfg.WeekStartDate = *p.WeekStartDate
	}
	return cfg, nil
}

// Session is an open check-in window.
type Session struct {
	Label            string    `json:"label"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	MinutesRemaining int       `json:"minutesRemaining"`
}

// CurrentSession reports the session open at now, or nil when check-in is closed.
// Windows are compared as minute-of-day intervals [start, start+duration), in now's location.
func CurrentSession(cfg Config, debug bool, now time.Time) *Session {
	if debug {
		return &Session{
			Label:            DebugLabel,
			Start:            now,
			End:              now.Add(debugMinutes * time.Minute),
			MinutesRemaining: debugMinutes,
		}
	}
	if int(now.Weekday()) != cfg.DayOfWeek {
		return nil
	}
	if s := matchWindow(cfg.Session1Start, cfg.Session1Duration, now); s != nil {
		return s
	}
	return matchWindow(cfg.Session2Start, cfg.Session2Duration, now)
}

func matchWindow(start ClockTime, duration int, now time.Time) *Session {
	from := start.minuteOfDay()
	until := from + duration
	current := now.Hour()*60 + now.Minute()
	if current < from || current >= until {
		return nil
	}
	y, m, d := now.Date()
	begin := time.Date(y, m, d, start.Hour, start.Minute, 0, 0, now.Location())
	return &Session{
		Label:            start.String(),
		Start:            begin,
		End:              begin.Add(time.Duration(duration) * time.Minute),
		MinutesRemaining: until - current,
	}
}

// WeekNumber counts 7-day periods since cfg.WeekStartDate, starting at 1.
// Days are calendar days in now's location.
func WeekNumber(cfg Config, now time.Time) int {
	start, err := time.ParseInLocation(dateLayout, cfg.WeekStartDate, now.Location())
	if err != nil {
		return 1
	}
	days := calendarDays(start, now)
	if days < 0 {
		return 1
	}
	week := days/7 + 1
	if week < 1 {
		week = 1
	}
	return week
}

func calendarDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Describe renders the schedule for people, e.g. "Tuesday 15:20-15:25 and 16:35-16:40".
func (c Config) Describe() string {
	return fmt.Sprintf("%s %s and %s",
		time.Weekday(c.DayOfWeek%7),
		describeRange(c.Session1Start, c.Session1Duration),
		describeRange(c.Session2Start, c.Session2Duration),
	)
}

func describeRange(start ClockTime, duration int) string {
	end := start.minuteOfDay() + duration
	return fmt.Sprintf("%s-%02d:%02d", start, (end/60)%24, end%60)
}

// Settings is the mutable admin-controlled state of an Engine.
type Settings struct {
	Config    Config `json:"config"`
	DebugMode bool   `json:"debugMode"`
}

// Engine owns the live schedule and debug flag and evaluates them in a fixed time zone.
type Engine struct {
	mu    sync.RWMutex
	cfg   Config
	debug bool
	loc   *time.Location
}

// NewEngine creates an engine; a nil location means time.Local.
func NewEngine(cfg Config, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{cfg: cfg, loc: loc}
}

// Location is the zone sessions and calendar days are evaluated in.
func (e *Engine) Location() *time.Location { return e.loc }

// CurrentSession reports the open session at now.
func (e *Engine) CurrentSession(now time.Time) *Session {
	e.mu.RLock()
	cfg, debug := e.cfg, e.debug
	e.mu.RUnlock()
	return CurrentSession(cfg, debug, now.In(e.loc))
}

// WeekNumber reports the week counter at now.
func (e *Engine) WeekNumber(now time.Time) int {
	return WeekNumber(e.Config(), now.In(e.loc))
}

// Day returns the calendar day key of now in the engine's zone.
func (e *Engine) Day(now time.Time) string {
	return now.In(e.loc).Format(dateLayout)
}

// Config returns a copy of the live schedule.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateConfig merges patch into the live schedule and returns the result.
func (e *Engine) UpdateConfig(patch ConfigPatch) (Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := patch.Apply(e.cfg)
	if err != nil {
		return e.cfg, err
	}
	e.cfg = next
	return next, nil
}

// SetDebugMode toggles the always-open override.
func (e *Engine) SetDebugMode(enabled bool) {
	e.mu.Lock()
	e.debug = enabled
	e.mu.Unlock()
}

// DebugMode reports the override flag.
func (e *Engine) DebugMode() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debug
}

// Settings snapshots config and debug flag together.
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Settings{Config: e.cfg, DebugMode: e.debug}
}

// Restore replaces config and debug flag, used when syncing from a shared store.
func (e *Engine) Restore(s Settings) {
	e.mu.Lock()
	e.cfg = s.Config
	e.debug = s.DebugMode
	e.mu.Unlock()
}
