package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"breakly/backend/internal/domain"
	"breakly/backend/internal/service/breaks"
	"breakly/backend/internal/store"
)

type breaksService interface {
	ScanSlots(ctx context.Context, userID string, cfg domain.ScanConfig, now time.Time) ([]breaks.Candidate, error)
	ScheduleBreak(ctx context.Context, in breaks.ScheduleInput) (domain.ScheduledBreak, error)
	CancelBreak(ctx context.Context, userID string, breakID uuid.UUID) error
	ListBreaks(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.ScheduledBreak, error)
}

type BreaksHandler struct {
	svc breaksService
	log *slog.Logger
}

func NewBreaksHandler(svc breaksService, log *slog.Logger) *BreaksHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BreaksHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.breaks")),
	}
}

type scanRequest struct {
	UserID             string     `json:"user_id"`
	DaysToScan         int        `json:"days_to_scan"`
	MinDurationMinutes int        `json:"min_duration_minutes"`
	MaxDurationMinutes int        `json:"max_duration_minutes"`
	DayStartHour       int        `json:"day_start_hour"`
	DayEndHour         int        `json:"day_end_hour"`
	Now                *time.Time `json:"now,omitempty"`
}

type candidateResponse struct {
	ID              string    `json:"id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	AlreadyAdded    bool      `json:"already_added"`
	BreakID         string    `json:"break_id,omitempty"`
}

func (h *BreaksHandler) ScanSlots(c *gin.Context) {
	log := h.log.With(slog.String("op", "ScanSlots"))

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"), slog.Any("err", err))
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := domain.ScanConfig{
		DaysToScan:         req.DaysToScan,
		MinDurationMinutes: req.MinDurationMinutes,
		MaxDurationMinutes: req.MaxDurationMinutes,
		DayStartHour:       req.DayStartHour,
		DayEndHour:         req.DayEndHour,
	}
	var now time.Time
	if req.Now != nil {
		now = *req.Now
	}

	candidates, err := h.svc.ScanSlots(c.Request.Context(), req.UserID, cfg, now)
	if err != nil {
		h.respondServiceError(c, log, err, req.UserID)
		return
	}

	out := make([]candidateResponse, 0, len(candidates))
	for _, cand := range candidates {
		r := candidateResponse{
			ID:              cand.ID,
			StartTime:       cand.Start,
			EndTime:         cand.End,
			DurationMinutes: cand.DurationMinutes,
			AlreadyAdded:    cand.AlreadyAdded,
		}
		if cand.AlreadyAdded {
			r.BreakID = cand.BreakID.String()
		}
		out = append(out, r)
	}

	log.Debug("slots scanned", slog.String("user_id", req.UserID), slog.Int("count", len(out)))
	c.JSON(http.StatusOK, gin.H{"candidates": out})
}

type scheduleRequest struct {
	UserID    string    `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Exercise  string    `json:"exercise"`
	Mood      int       `json:"mood"`
	Title     string    `json:"title"`
}

type breakResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SlotID    string    `json:"slot_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Exercise  string    `json:"exercise"`
	Mood      int       `json:"mood"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *BreaksHandler) ScheduleBreak(c *gin.Context) {
	log := h.log.With(slog.String("op", "ScheduleBreak"))

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"), slog.Any("err", err))
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	scheduled, err := h.svc.ScheduleBreak(c.Request.Context(), breaks.ScheduleInput{
		UserID:    req.UserID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Exercise:  domain.ExerciseKind(req.Exercise),
		Mood:      req.Mood,
		Title:     req.Title,
	})
	if err != nil {
		h.respondServiceError(c, log, err, req.UserID)
		return
	}

	log.Info(
		"break scheduled",
		slog.String("break_id", scheduled.Event.ID.String()),
		slog.String("user_id", scheduled.Event.UserID),
		slog.Time("start_time", scheduled.Event.StartTime),
		slog.Time("end_time", scheduled.Event.EndTime),
	)
	c.JSON(http.StatusCreated, toBreakResponse(scheduled))
}

func (h *BreaksHandler) ListBreaks(c *gin.Context) {
	log := h.log.With(slog.String("op", "ListBreaks"))

	userID := c.Query("user_id")
	windowStart, err := parseTimeParam(c.Query("window_start"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "window_start must be RFC3339")
		return
	}
	windowEnd, err := parseTimeParam(c.Query("window_end"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "window_end must be RFC3339")
		return
	}

	scheduled, err := h.svc.ListBreaks(c.Request.Context(), userID, windowStart, windowEnd)
	if err != nil {
		h.respondServiceError(c, log, err, userID)
		return
	}

	out := make([]breakResponse, 0, len(scheduled))
	for _, b := range scheduled {
		out = append(out, toBreakResponse(b))
	}

	log.Debug("breaks listed", slog.String("user_id", userID), slog.Int("count", len(out)))
	c.JSON(http.StatusOK, gin.H{"breaks": out})
}

func (h *BreaksHandler) CancelBreak(c *gin.Context) {
	log := h.log.With(slog.String("op", "CancelBreak"))

	userID := c.Query("user_id")
	breakID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "break id must be a UUID")
		return
	}

	if err := h.svc.CancelBreak(c.Request.Context(), userID, breakID); err != nil {
		h.respondServiceError(c, log, err, userID)
		return
	}

	log.Info("break cancelled", slog.String("break_id", breakID.String()), slog.String("user_id", userID))
	c.Status(http.StatusNoContent)
}

func (h *BreaksHandler) respondServiceError(c *gin.Context, log *slog.Logger, err error, userID string) {
	switch {
	case errors.Is(err, store.ErrDuplicateSlot):
		log.Info("duplicate slot", slog.String("user_id", userID))
		respondError(c, http.StatusConflict, "A break for this slot is already scheduled.")
	case errors.Is(err, store.ErrConflict):
		log.Info("schedule conflict", slog.String("user_id", userID))
		respondError(c, http.StatusConflict, "That time is already occupied. Pick a different slot.")
	case errors.Is(err, store.ErrNotFound):
		log.Info("break not found", slog.String("user_id", userID))
		respondError(c, http.StatusNotFound, "Break not found.")
	default:
		var vErr *breaks.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("user_id", userID))
			respondError(c, http.StatusBadRequest, vErr.Error())
			return
		}
		log.Error("request failed", slog.Any("err", err), slog.String("user_id", userID))
		respondError(c, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func toBreakResponse(b domain.ScheduledBreak) breakResponse {
	return breakResponse{
		ID:        b.Event.ID.String(),
		UserID:    b.Event.UserID,
		SlotID:    b.Event.SlotID,
		Title:     b.Event.Title,
		StartTime: b.Event.StartTime,
		EndTime:   b.Event.EndTime,
		Exercise:  string(b.Meta.Exercise),
		Mood:      int(b.Meta.Mood),
		CreatedAt: b.Event.CreatedAt,
	}
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("missing")
	}
	return time.Parse(time.RFC3339, v)
}
