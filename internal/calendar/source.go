package calendar

import (
	"context"
	"time"

	"breakly/backend/internal/domain"
)

// Source supplies the external busy intervals for a scan window. It owns
// permission/transport concerns; callers get an immutable snapshot.
type Source interface {
	BusyIntervals(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.BusyInterval, error)
}
