package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ExerciseKind string

const (
	ExerciseBreathing  ExerciseKind = "breathing"
	ExerciseStretch    ExerciseKind = "stretch"
	ExerciseWalk       ExerciseKind = "walk"
	ExerciseMeditation ExerciseKind = "meditation"
)

func (k ExerciseKind) Valid() bool {
	switch k {
	case ExerciseBreathing, ExerciseStretch, ExerciseWalk, ExerciseMeditation:
		return true
	}
	return false
}

// Title is the default calendar title for a break of this kind.
func (k ExerciseKind) Title() string {
	switch k {
	case ExerciseBreathing:
		return "Breathing break"
	case ExerciseStretch:
		return "Stretch break"
	case ExerciseWalk:
		return "Walking break"
	case ExerciseMeditation:
		return "Meditation break"
	}
	return "Wellness break"
}

// BreakEvent is a scheduled wellness break owned by this service. It is the
// calendar entry itself; business metadata lives in BreakMetadata, keyed by
// the event id, rather than being encoded into a notes field.
type BreakEvent struct {
	bun.BaseModel `bun:"table:break_events"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	UserID    string    `bun:"user_id,notnull"`
	SlotID    string    `bun:"slot_id,notnull"`
	Title     string    `bun:"title,notnull"`
	StartTime time.Time `bun:"start_time,notnull"`
	EndTime   time.Time `bun:"end_time,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (e *BreakEvent) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		e.UpdatedAt = now
	}
	return nil
}

// BusyInterval converts the event into scan input.
func (e *BreakEvent) BusyInterval() BusyInterval {
	return BusyInterval{
		Start: e.StartTime,
		End:   e.EndTime,
		Owned: true,
		Tag:   "breakly",
	}
}

// BreakMetadata is the structured side-store row for a break event: exercise
// kind, the mood recorded when the break was scheduled (1..5), and the slot
// id the break was created from.
type BreakMetadata struct {
	bun.BaseModel `bun:"table:break_metadata"`

	EventID   uuid.UUID    `bun:"event_id,pk,type:uuid"`
	SlotID    string       `bun:"slot_id,notnull"`
	Exercise  ExerciseKind `bun:"exercise,notnull"`
	Mood      int16        `bun:"mood,notnull"`
	CreatedAt time.Time    `bun:"created_at,notnull"`
	UpdatedAt time.Time    `bun:"updated_at,notnull"`
}

func (m *BreakMetadata) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		m.UpdatedAt = now
	}
	return nil
}

// ScheduledBreak is a break event joined with its metadata row.
type ScheduledBreak struct {
	Event BreakEvent
	Meta  BreakMetadata
}
