package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clubattendance/internal/attendance"
	"clubattendance/internal/auth"
	"clubattendance/internal/logger"
	"clubattendance/internal/metrics"
	"clubattendance/internal/queue"
	"clubattendance/internal/store"
)

// SettingsSaver persists engine settings for other instances.
type SettingsSaver interface {
	Save(ctx context.Context, s attendance.Settings) error
}

// Summarizer reads weekly tallies.
type Summarizer interface {
	Summary(ctx context.Context, week int) (store.WeekSummary, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the attendance HTTP API.
type Handler struct {
	svc      *attendance.Service
	signer   *auth.Signer
	admin    *auth.AdminCredentials
	queue    queue.Queue
	settings SettingsSaver
	tally    Summarizer
	health   map[string]HealthCheck
	log      *logger.Logger
}

// Deps lists what the handler needs; Queue, Settings, Tally and Health are optional.
type Deps struct {
	Service  *attendance.Service
	Signer   *auth.Signer
	Admin    *auth.AdminCredentials
	Queue    queue.Queue
	Settings SettingsSaver
	Tally    Summarizer
	Health   map[string]HealthCheck
	Log      *logger.Logger
}

// NewHandler wires a handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		svc:      d.Service,
		signer:   d.Signer,
		admin:    d.Admin,
		queue:    d.Queue,
		settings: d.Settings,
		tally:    d.Tally,
		health:   d.Health,
		log:      d.Log,
	}
}

// Healthz reports dependency reachability.
func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

type sessionView struct {
	Label            string `json:"label"`
	MinutesRemaining int    `json:"minutesRemaining"`
}

// Status reports whether check-in is open right now.
func (h *Handler) Status(c *gin.Context) {
	eng := h.svc.Engine()
	now := h.svc.Now().In(eng.Location())
	settings := eng.Settings()

	session := attendance.CurrentSession(settings.Config, settings.DebugMode, now)
	metrics.SetWindowOpen(session != nil)

	var view *sessionView
	if session != nil {
		view = &sessionView{Label: session.Label, MinutesRemaining: session.MinutesRemaining}
	}
	c.JSON(http.StatusOK, gin.H{
		"isOpen":     session != nil,
		"session":    view,
		"weekNumber": attendance.WeekNumber(settings.Config, now),
		"debugMode":  settings.DebugMode,
		"config":     settings.Config,
	})
}

// CheckIn records a student's attendance for the open session.
func (h *Handler) CheckIn(c *gin.Context) {
	var req struct {
		StudentID    string `json:"studentId"`
		StudentName  string `json:"studentName"`
		StudentEmail string `json:"studentEmail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.CheckIns.WithLabelValues(metrics.ResultInvalid).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := h.svc.CheckIn(c.Request.Context(), attendance.CheckInRequest{
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
	})
	if err != nil {
		metrics.CheckIns.WithLabelValues(checkInResult(err)).Inc()
		if errors.Is(err, attendance.ErrStoreUnavailable) {
			h.log.Errorf("check-in for %s failed: %v", req.StudentID, err)
		}
		h.writeError(c, err)
		return
	}
	metrics.CheckIns.WithLabelValues(metrics.ResultRecorded).Inc()
	h.publish(c.Request.Context(), rec)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"record": gin.H{
			"id":           rec.ID,
			"studentName":  rec.StudentName,
			"sessionLabel": rec.SessionTime,
			"checkInTime":  rec.CheckInTime,
			"status":       rec.Status,
			"weekNumber":   rec.WeekNumber,
		},
	})
}

func (h *Handler) publish(ctx context.Context, rec attendance.Record) {
	if h.queue == nil {
		return
	}
	body, err := attendance.EventFor(rec).Encode()
	if err != nil {
		h.log.Errorf("encode check-in event %s: %v", rec.ID, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.queue.Publish(ctx, queue.Message{Type: attendance.EventCheckIn, Body: body}); err != nil {
		h.log.Warnf("queue publish failed for %s: %v", rec.ID, err)
	}
}

// AdminAction toggles debug mode or updates the schedule.
func (h *Handler) AdminAction(c *gin.Context) {
	var req struct {
		Action  string                  `json:"action" binding:"required,oneof=toggle-debug update-config"`
		Enabled *bool                   `json:"enabled"`
		Config  *attendance.ConfigPatch `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be toggle-debug or update-config"})
		return
	}

	eng := h.svc.Engine()
	switch req.Action {
	case "toggle-debug":
		if req.Enabled == nil {
			h.writeError(c, &attendance.ValidationError{Field: "enabled"})
			return
		}
		eng.SetDebugMode(*req.Enabled)
		h.log.Infof("debug mode set to %v", *req.Enabled)
	case "update-config":
		if req.Config == nil {
			h.writeError(c, &attendance.ValidationError{Field: "config"})
			return
		}
		cfg, err := eng.UpdateConfig(*req.Config)
		if err != nil {
			h.writeError(c, err)
			return
		}
		h.log.Infof("attendance config updated: %s, week start %s", cfg.Describe(), cfg.WeekStartDate)
	}

	settings := eng.Settings()
	if h.settings != nil {
		if err := h.settings.Save(c.Request.Context(), settings); err != nil {
			h.log.Warnf("settings sync failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"debugMode": settings.DebugMode, "config": settings.Config})
}

// ListRecords returns stored check-ins with basic filters.
func (h *Handler) ListRecords(c *gin.Context) {
	f := attendance.Filter{StudentID: c.Query("studentId")}
	if v := c.Query("week"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.WeekNumber = parsed
		}
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}
	records, err := h.svc.Records(c.Request.Context(), f)
	if err != nil {
		h.log.Errorf("list records: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetRecord returns one check-in.
func (h *Handler) GetRecord(c *gin.Context) {
	rec, err := h.svc.Record(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// ReviewRecord lets an admin change a record's status and notes.
func (h *Handler) ReviewRecord(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, &attendance.ValidationError{Field: "status"})
		return
	}
	rec, err := h.svc.Review(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

// WeekSummary returns the worker's tallies for a week.
func (h *Handler) WeekSummary(c *gin.Context) {
	if h.tally == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "weekly tallies not configured"})
		return
	}
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil || week < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "week must be a positive integer"})
		return
	}
	summary, err := h.tally.Summary(c.Request.Context(), week)
	if err != nil {
		h.log.Errorf("week %d summary: %v", week, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tallies unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Login issues admin tokens.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	switch err := h.admin.Verify(req.Username, req.Password); {
	case errors.Is(err, auth.ErrLoginDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	h.issue(c, req.Username, auth.RoleAdmin)
}

// Refresh exchanges a refresh token for a new pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}
	claims, err := h.signer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	h.issue(c, claims.Subject, claims.Role)
}

func (h *Handler) issue(c *gin.Context, subject, role string) {
	tokens, err := h.signer.Issue(subject, role)
	if err != nil {
		h.log.Errorf("token issue failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"expiresAt":    tokens.AccessExp.Unix(),
	})
}

func checkInResult(err error) string {
	var (
		validation *attendance.ValidationError
		closed     *attendance.WindowClosedError
		duplicate  *attendance.DuplicateCheckInError
	)
	switch {
	case errors.As(err, &validation):
		return metrics.ResultInvalid
	case errors.As(err, &closed):
		return metrics.ResultClosed
	case errors.As(err, &duplicate):
		return metrics.ResultDuplicate
	}
	return metrics.ResultUnavailable
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validation *attendance.ValidationError
		closed     *attendance.WindowClosedError
		duplicate  *attendance.DuplicateCheckInError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &closed), errors.As(err, &duplicate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": attendance.ErrStoreUnavailable.Error()})
	default:
		h.log.Errorf("unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
