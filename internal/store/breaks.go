package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"breakly/backend/internal/domain"
)

type BreakRepository interface {
	// Create persists the break event and its metadata row in one
	// transaction. Returns ErrDuplicateSlot when the user already has a
	// break for the same slot id, ErrConflict when the event overlaps an
	// existing break.
	Create(ctx context.Context, event domain.BreakEvent, meta domain.BreakMetadata) (domain.ScheduledBreak, error)

	// Delete removes the event and its metadata. Returns ErrNotFound when
	// the event does not exist for this user.
	Delete(ctx context.Context, userID string, eventID uuid.UUID) error

	// List returns the user's breaks overlapping [windowStart, windowEnd),
	// ordered by start time, with metadata joined in.
	List(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.ScheduledBreak, error)

	// SlotIDs maps slot id to event id for the user's breaks overlapping
	// the window. Used for already-added marking during a scan.
	SlotIDs(ctx context.Context, userID string, windowStart, windowEnd time.Time) (map[string]uuid.UUID, error)
}
