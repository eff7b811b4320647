package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"breakly/backend/internal/domain"
	"breakly/backend/internal/store"
)

type BreakRepo struct {
	db *bun.DB
}

func NewBreakRepo(db *bun.DB) *BreakRepo {
	return &BreakRepo{db: db}
}

func (r *BreakRepo) Create(ctx context.Context, event domain.BreakEvent, meta domain.BreakMetadata) (domain.ScheduledBreak, error) {
	var out domain.ScheduledBreak
	err := r.inUserTransaction(ctx, event.UserID, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*domain.BreakEvent)(nil)).
			Where("user_id = ?", event.UserID).
			Where("slot_id = ?", event.SlotID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return store.ErrDuplicateSlot
		}

		overlaps, err := tx.NewSelect().
			Model((*domain.BreakEvent)(nil)).
			Where("user_id = ?", event.UserID).
			Where("start_time < ?", event.EndTime).
			Where("end_time > ?", event.StartTime).
			Exists(ctx)
		if err != nil {
			return err
		}
		if overlaps {
			return store.ErrConflict
		}

		e := event
		if _, err := tx.NewInsert().Model(&e).Exec(ctx); err != nil {
			return mapInsertError(err)
		}

		m := meta
		m.EventID = e.ID
		m.SlotID = e.SlotID
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return mapInsertError(err)
		}

		out = domain.ScheduledBreak{Event: e, Meta: m}
		return nil
	})
	if err != nil {
		return domain.ScheduledBreak{}, err
	}
	return out, nil
}

func (r *BreakRepo) Delete(ctx context.Context, userID string, eventID uuid.UUID) error {
	return r.inUserTransaction(ctx, userID, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*domain.BreakMetadata)(nil)).
			Where("event_id = ?", eventID).
			Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*domain.BreakEvent)(nil)).
			Where("user_id = ?", userID).
			Where("id = ?", eventID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (r *BreakRepo) List(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]domain.ScheduledBreak, error) {
	var events []domain.BreakEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("user_id = ?", userID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []domain.ScheduledBreak{}, nil
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	var metas []domain.BreakMetadata
	err = r.db.NewSelect().
		Model(&metas).
		Where("event_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return assembleScheduledBreaks(events, metas), nil
}

func (r *BreakRepo) SlotIDs(ctx context.Context, userID string, windowStart, windowEnd time.Time) (map[string]uuid.UUID, error) {
	var events []domain.BreakEvent
	err := r.db.NewSelect().
		Model(&events).
		Column("id", "slot_id").
		Where("user_id = ?", userID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]uuid.UUID, len(events))
	for _, e := range events {
		out[e.SlotID] = e.ID
	}
	return out, nil
}

func (r *BreakRepo) inUserTransaction(ctx context.Context, userID string, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockUserBreaks(ctx, tx, userID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

// Serializes schedule/cancel per user so the overlap and duplicate checks
// stay race-free without an exclusion constraint.
func lockUserBreaks(ctx context.Context, tx bun.Tx, userID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", userID).Exec(ctx)
	return err
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return store.ErrDuplicateSlot
		case "23P01":
			return store.ErrConflict
		}
	}
	return err
}

func assembleScheduledBreaks(events []domain.BreakEvent, metas []domain.BreakMetadata) []domain.ScheduledBreak {
	metaByEvent := make(map[uuid.UUID]domain.BreakMetadata, len(metas))
	for _, m := range metas {
		metaByEvent[m.EventID] = m
	}

	out := make([]domain.ScheduledBreak, 0, len(events))
	for _, e := range events {
		out = append(out, domain.ScheduledBreak{Event: e, Meta: metaByEvent[e.ID]})
	}
	return out
}
