package breaks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"breakly/backend/internal/calendar"
	"breakly/backend/internal/domain"
	"breakly/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	repo     store.BreakRepository
	source   calendar.Source
	defaults domain.ScanConfig
}

func NewService(repo store.BreakRepository, source calendar.Source, defaults domain.ScanConfig) *Service {
	return &Service{repo: repo, source: source, defaults: defaults}
}

// Candidate is a proposed slot plus whether the user already scheduled a
// break for it.
type Candidate struct {
	domain.SlotCandidate

	AlreadyAdded bool
	BreakID      uuid.UUID
}

// ScanSlots proposes break slots for the user. Zero-valued config fields
// fall back to the service defaults; a zero now means the current time.
//
// The scan runs against external busy intervals only: breaks this service
// already scheduled stay visible as candidates, marked AlreadyAdded, instead
// of silently disappearing from the proposal list.
func (s *Service) ScanSlots(ctx context.Context, userID string, cfg domain.ScanConfig, now time.Time) ([]Candidate, error) {
	if userID == "" {
		return nil, validationError("user_id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	cfg = s.applyDefaults(cfg)
	if err := validateScanConfig(cfg); err != nil {
		return nil, err
	}

	windowStart := startOfDay(now)
	windowEnd := windowStart.AddDate(0, 0, cfg.DaysToScan)

	busy, err := s.source.BusyIntervals(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("calendar source: %w", err)
	}

	slots := domain.FindFreeSlots(busy, cfg, now)
	if len(slots) == 0 {
		if slot, ok := domain.FallbackSlot(cfg, now); ok {
			slots = []domain.SlotCandidate{slot}
		}
	}

	scheduled, err := s.repo.SlotIDs(ctx, userID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(slots))
	for _, slot := range slots {
		c := Candidate{SlotCandidate: slot}
		if id, ok := scheduled[slot.ID]; ok {
			c.AlreadyAdded = true
			c.BreakID = id
		}
		out = append(out, c)
	}
	return out, nil
}

type ScheduleInput struct {
	UserID    string
	StartTime time.Time
	EndTime   time.Time
	Exercise  domain.ExerciseKind
	Mood      int
	Title     string
}

// ScheduleBreak persists a break for the chosen slot. The break event id is
// a deterministic UUID of (user, slot id), so retrying the same request
// cannot create two breaks for one slot. Overlap with external calendar
// entries or with existing breaks is refused with store.ErrConflict.
func (s *Service) ScheduleBreak(ctx context.Context, in ScheduleInput) (domain.ScheduledBreak, error) {
	if in.UserID == "" {
		return domain.ScheduledBreak{}, validationError("user_id is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return domain.ScheduledBreak{}, validationError("start_time and end_time are required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if end.Equal(start) || end.Before(start) {
		return domain.ScheduledBreak{}, validationError("end_time must be after start_time")
	}
	if end.Sub(start) > 4*time.Hour {
		return domain.ScheduledBreak{}, validationError("break too long")
	}
	if !in.Exercise.Valid() {
		return domain.ScheduledBreak{}, validationError("unknown exercise")
	}
	if in.Mood < 1 || in.Mood > 5 {
		return domain.ScheduledBreak{}, validationError("mood must be between 1 and 5")
	}

	busy, err := s.source.BusyIntervals(ctx, startOfDay(start), startOfDay(start).AddDate(0, 0, 1))
	if err != nil {
		return domain.ScheduledBreak{}, fmt.Errorf("calendar source: %w", err)
	}
	if domain.HasConflict(busy, start, end) {
		return domain.ScheduledBreak{}, store.ErrConflict
	}

	durationMinutes := int(end.Sub(start) / time.Minute)
	slotID := domain.SlotID(start, durationMinutes)

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.Exercise.Title()
	}

	event := domain.BreakEvent{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte("breakly:schedule_break:"+in.UserID+":"+slotID)),
		UserID:    in.UserID,
		SlotID:    slotID,
		Title:     title,
		StartTime: start,
		EndTime:   end,
	}
	meta := domain.BreakMetadata{
		SlotID:   slotID,
		Exercise: in.Exercise,
		Mood:     int16(in.Mood),
	}

	return s.repo.Create(ctx, event, meta)
}

func (s *Service) CancelBreak(ctx context.Context, userID string, breakID uuid.UUID) error {
	if userID == "" {
		return validationError("user_id is required")
	}
	if breakID == uuid.Nil {
		return validationError("break_id is required")
	}
	return s.repo.Delete(ctx, userID, breakID)
}

func (s *Service) ListBreaks(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.ScheduledBreak, error) {
	if userID == "" {
		return nil, validationError("user_id is required")
	}

	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}

	return s.repo.List(ctx, userID, start, end)
}

func (s *Service) applyDefaults(cfg domain.ScanConfig) domain.ScanConfig {
	if cfg.DaysToScan == 0 {
		cfg.DaysToScan = s.defaults.DaysToScan
	}
	if cfg.MinDurationMinutes == 0 {
		cfg.MinDurationMinutes = s.defaults.MinDurationMinutes
	}
	if cfg.MaxDurationMinutes == 0 {
		cfg.MaxDurationMinutes = s.defaults.MaxDurationMinutes
	}
	if cfg.DayStartHour == 0 && cfg.DayEndHour == 0 {
		cfg.DayStartHour = s.defaults.DayStartHour
		cfg.DayEndHour = s.defaults.DayEndHour
	}
	return cfg
}

// validateScanConfig enforces the preconditions the slot finder itself does
// not check.
func validateScanConfig(cfg domain.ScanConfig) error {
	if cfg.DaysToScan < 1 || cfg.DaysToScan > 31 {
		return validationError("days_to_scan must be between 1 and 31")
	}
	if cfg.MinDurationMinutes < 1 {
		return validationError("min_duration_minutes must be positive")
	}
	if cfg.MaxDurationMinutes < cfg.MinDurationMinutes {
		return validationError("max_duration_minutes must be at least min_duration_minutes")
	}
	if cfg.DayStartHour < 0 || cfg.DayEndHour > 24 || cfg.DayStartHour >= cfg.DayEndHour {
		return validationError("day window hours are invalid")
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
