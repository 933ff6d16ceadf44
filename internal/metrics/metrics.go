package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in results used as the "result" label.
const (
	ResultRecorded    = "recorded"
	ResultInvalid     = "invalid"
	ResultClosed      = "closed"
	ResultDuplicate   = "duplicate"
	ResultUnavailable = "unavailable"
)

var (
	// CheckIns counts check-in attempts by outcome.
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_checkins_total",
		Help: "Check-in attempts by result.",
	}, []string{"result"})

	// WindowOpen is 1 while a session is open, as of the last status read.
	WindowOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_window_open",
		Help: "Whether a check-in session was open at the last status read.",
	})

	// DedupLookupFailures counts duplicate lookups that failed and fell through to insert.
	DedupLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_dedup_lookup_failures_total",
		Help: "Duplicate check-in lookups that failed.",
	})

	// WorkerEvents counts check-in events handled by the worker.
	WorkerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_worker_events_total",
		Help: "Check-in events processed by the worker, by outcome.",
	}, []string{"outcome"})
)

// SetWindowOpen records the window state.
func SetWindowOpen(open bool) {
	if open {
		WindowOpen.Set(1)
		return
	}
	WindowOpen.Set(0)
}
