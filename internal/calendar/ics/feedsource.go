package ics

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"breakly/backend/internal/domain"
)

// Feed is one configured ICS subscription.
type Feed struct {
	ID  string
	URL string
}

// FeedSource aggregates busy intervals from a set of ICS feeds. It satisfies
// calendar.Source.
type FeedSource struct {
	feeds   []Feed
	fetcher *Fetcher
	log     *slog.Logger
}

func NewFeedSource(feeds []Feed, fetcher *Fetcher, log *slog.Logger) *FeedSource {
	if log == nil {
		log = slog.Default()
	}
	return &FeedSource{
		feeds:   feeds,
		fetcher: fetcher,
		log:     log.With(slog.String("component", "ics.feedsource")),
	}
}

// BusyIntervals fetches, parses and expands every feed for the window. A
// failing feed is logged and skipped; the call only errors when every
// configured feed failed, so a single dead subscription does not block
// scanning.
func (s *FeedSource) BusyIntervals(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.BusyInterval, error) {
	out := make([]domain.BusyInterval, 0)
	var errs []error

	for _, feed := range s.feeds {
		body, fromCache, err := s.fetcher.Fetch(ctx, feed.URL)
		if err != nil {
			s.log.Warn("feed fetch failed", slog.String("feed_id", feed.ID), slog.Any("err", err))
			errs = append(errs, err)
			continue
		}

		events, err := Parse(feed.ID, body)
		if err != nil {
			s.log.Warn("feed parse failed", slog.String("feed_id", feed.ID), slog.Any("err", err))
			errs = append(errs, err)
			continue
		}

		intervals := Expand(events, windowStart, windowEnd)
		s.log.Debug(
			"feed expanded",
			slog.String("feed_id", feed.ID),
			slog.Bool("from_cache", fromCache),
			slog.Int("event_count", len(events)),
			slog.Int("interval_count", len(intervals)),
		)
		out = append(out, intervals...)
	}

	if len(errs) > 0 && len(errs) == len(s.feeds) {
		return nil, errors.Join(errs...)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// Refresh refetches every feed to keep the cache warm. Fetch errors are
// logged but not returned; the next scan falls back to cached bodies.
func (s *FeedSource) Refresh(ctx context.Context) {
	for _, feed := range s.feeds {
		if _, _, err := s.fetcher.Fetch(ctx, feed.URL); err != nil {
			s.log.Warn("feed refresh failed", slog.String("feed_id", feed.ID), slog.Any("err", err))
		}
	}
}
