package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"breakly/backend/internal/domain"
	"breakly/backend/internal/service/breaks"
	"breakly/backend/internal/store"
)

type fakeBreaksService struct {
	ScanSlotsFunc     func(ctx context.Context, userID string, cfg domain.ScanConfig, now time.Time) ([]breaks.Candidate, error)
	ScheduleBreakFunc func(ctx context.Context, in breaks.ScheduleInput) (domain.ScheduledBreak, error)
	CancelBreakFunc   func(ctx context.Context, userID string, breakID uuid.UUID) error
	ListBreaksFunc    func(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.ScheduledBreak, error)
}

func (f *fakeBreaksService) ScanSlots(ctx context.Context, userID string, cfg domain.ScanConfig, now time.Time) ([]breaks.Candidate, error) {
	return f.ScanSlotsFunc(ctx, userID, cfg, now)
}

func (f *fakeBreaksService) ScheduleBreak(ctx context.Context, in breaks.ScheduleInput) (domain.ScheduledBreak, error) {
	return f.ScheduleBreakFunc(ctx, in)
}

func (f *fakeBreaksService) CancelBreak(ctx context.Context, userID string, breakID uuid.UUID) error {
	return f.CancelBreakFunc(ctx, userID, breakID)
}

func (f *fakeBreaksService) ListBreaks(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.ScheduledBreak, error) {
	return f.ListBreaksFunc(ctx, userID, windowStart, windowEnd)
}

func newTestRouter(svc breaksService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewBreaksHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewRouter(h, time.Second)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScanSlots_OK(t *testing.T) {
	start := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	breakID := uuid.New()

	svc := &fakeBreaksService{
		ScanSlotsFunc: func(ctx context.Context, userID string, cfg domain.ScanConfig, now time.Time) ([]breaks.Candidate, error) {
			if userID != "user-1" {
				t.Fatalf("userID = %q, want user-1", userID)
			}
			if cfg.DaysToScan != 3 {
				t.Fatalf("cfg.DaysToScan = %d, want 3", cfg.DaysToScan)
			}
			return []breaks.Candidate{
				{
					SlotCandidate: domain.SlotCandidate{
						ID:              domain.SlotID(start, 30),
						Start:           start,
						End:             start.Add(30 * time.Minute),
						DurationMinutes: 30,
					},
				},
				{
					SlotCandidate: domain.SlotCandidate{
						ID:              domain.SlotID(start.Add(30*time.Minute), 30),
						Start:           start.Add(30 * time.Minute),
						End:             start.Add(time.Hour),
						DurationMinutes: 30,
					},
					AlreadyAdded: true,
					BreakID:      breakID,
				},
			}, nil
		},
	}
	router := newTestRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/v1/slots/scan", map[string]any{
		"user_id":              "user-1",
		"days_to_scan":         3,
		"min_duration_minutes": 15,
		"max_duration_minutes": 30,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Candidates []candidateResponse `json:"candidates"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2", len(resp.Candidates))
	}
	if resp.Candidates[0].BreakID != "" {
		t.Fatalf("fresh candidate has break_id %q", resp.Candidates[0].BreakID)
	}
	if !resp.Candidates[1].AlreadyAdded || resp.Candidates[1].BreakID != breakID.String() {
		t.Fatalf("already-added candidate = %+v, want break_id %s", resp.Candidates[1], breakID)
	}
}

func TestScanSlots_BadJSON(t *testing.T) {
	router := newTestRouter(&fakeBreaksService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/slots/scan", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestScanSlots_ValidationError(t *testing.T) {
	svc := &fakeBreaksService{
		ScanSlotsFunc: func(ctx context.Context, userID string, cfg domain.ScanConfig, now time.Time) ([]breaks.Candidate, error) {
			return nil, &breaks.ValidationError{}
		},
	}
	w := doJSON(t, newTestRouter(svc), http.MethodPost, "/v1/slots/scan", map[string]any{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestScheduleBreak_Created(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	eventID := uuid.New()

	svc := &fakeBreaksService{
		ScheduleBreakFunc: func(ctx context.Context, in breaks.ScheduleInput) (domain.ScheduledBreak, error) {
			if in.Exercise != domain.ExerciseStretch {
				t.Fatalf("exercise = %q, want stretch", in.Exercise)
			}
			return domain.ScheduledBreak{
				Event: domain.BreakEvent{
					ID:        eventID,
					UserID:    in.UserID,
					SlotID:    domain.SlotID(in.StartTime, 30),
					Title:     "Stretch break",
					StartTime: in.StartTime,
					EndTime:   in.EndTime,
					CreatedAt: start,
				},
				Meta: domain.BreakMetadata{
					EventID:  eventID,
					Exercise: in.Exercise,
					Mood:     int16(in.Mood),
				},
			}, nil
		},
	}
	router := newTestRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/v1/breaks", map[string]any{
		"user_id":    "user-1",
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(30 * time.Minute).Format(time.RFC3339),
		"exercise":   "stretch",
		"mood":       4,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp breakResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != eventID.String() {
		t.Fatalf("id = %q, want %s", resp.ID, eventID)
	}
	if resp.Exercise != "stretch" || resp.Mood != 4 {
		t.Fatalf("exercise/mood = %q/%d, want stretch/4", resp.Exercise, resp.Mood)
	}
}

func TestScheduleBreak_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"duplicate slot", store.ErrDuplicateSlot, http.StatusConflict},
		{"calendar conflict", store.ErrConflict, http.StatusConflict},
		{"validation", &breaks.ValidationError{}, http.StatusBadRequest},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeBreaksService{
				ScheduleBreakFunc: func(ctx context.Context, in breaks.ScheduleInput) (domain.ScheduledBreak, error) {
					return domain.ScheduledBreak{}, tt.err
				},
			}
			w := doJSON(t, newTestRouter(svc), http.MethodPost, "/v1/breaks", map[string]any{
				"user_id":    "user-1",
				"start_time": "2026-03-10T09:00:00Z",
				"end_time":   "2026-03-10T09:30:00Z",
				"exercise":   "walk",
				"mood":       3,
			})

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestListBreaks_RequiresWindow(t *testing.T) {
	router := newTestRouter(&fakeBreaksService{})

	w := doJSON(t, router, http.MethodGet, "/v1/breaks?user_id=user-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListBreaks_OK(t *testing.T) {
	windowStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	windowEnd := windowStart.AddDate(0, 0, 3)

	svc := &fakeBreaksService{
		ListBreaksFunc: func(ctx context.Context, userID string, ws, we time.Time) ([]domain.ScheduledBreak, error) {
			if !ws.Equal(windowStart) || !we.Equal(windowEnd) {
				t.Fatalf("window = %v-%v, want %v-%v", ws, we, windowStart, windowEnd)
			}
			return []domain.ScheduledBreak{{
				Event: domain.BreakEvent{ID: uuid.New(), UserID: userID, Title: "Walk break"},
				Meta:  domain.BreakMetadata{Exercise: domain.ExerciseWalk, Mood: 5},
			}}, nil
		},
	}
	router := newTestRouter(svc)

	path := "/v1/breaks?user_id=user-1&window_start=" + windowStart.Format(time.RFC3339) + "&window_end=" + windowEnd.Format(time.RFC3339)
	w := doJSON(t, router, http.MethodGet, path, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Breaks []breakResponse `json:"breaks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Breaks) != 1 || resp.Breaks[0].Exercise != "walk" {
		t.Fatalf("breaks = %+v, want one walk break", resp.Breaks)
	}
}

func TestCancelBreak_NoContent(t *testing.T) {
	breakID := uuid.New()
	var gotID uuid.UUID

	svc := &fakeBreaksService{
		CancelBreakFunc: func(ctx context.Context, userID string, id uuid.UUID) error {
			gotID = id
			return nil
		},
	}
	router := newTestRouter(svc)

	w := doJSON(t, router, http.MethodDelete, "/v1/breaks/"+breakID.String()+"?user_id=user-1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", w.Code, w.Body.String())
	}
	if gotID != breakID {
		t.Fatalf("cancelled id = %s, want %s", gotID, breakID)
	}
}

func TestCancelBreak_BadID(t *testing.T) {
	router := newTestRouter(&fakeBreaksService{})

	w := doJSON(t, router, http.MethodDelete, "/v1/breaks/not-a-uuid?user_id=user-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCancelBreak_NotFound(t *testing.T) {
	svc := &fakeBreaksService{
		CancelBreakFunc: func(ctx context.Context, userID string, id uuid.UUID) error {
			return store.ErrNotFound
		},
	}
	router := newTestRouter(svc)

	w := doJSON(t, router, http.MethodDelete, "/v1/breaks/"+uuid.NewString()+"?user_id=user-1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&fakeBreaksService{})

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
