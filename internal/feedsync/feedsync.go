package feedsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultRefreshTimeout = 2 * time.Minute

// Refresher re-runs a feed refresh on a cron schedule so the feed cache is
// warm when a scan arrives.
type Refresher struct {
	cron    *cron.Cron
	refresh func(ctx context.Context)
	timeout time.Duration
	log     *slog.Logger
}

func NewRefresher(schedule string, refresh func(ctx context.Context), log *slog.Logger) (*Refresher, error) {
	if log == nil {
		log = slog.Default()
	}

	r := &Refresher{
		cron:    cron.New(),
		refresh: refresh,
		timeout: defaultRefreshTimeout,
		log:     log.With(slog.String("component", "feedsync")),
	}

	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	started := time.Now()
	r.refresh(ctx)
	r.log.Debug("feed refresh completed", slog.Duration("elapsed", time.Since(started)))
}

// Start begins scheduled refreshes and kicks one off immediately so the
// first scan after boot does not hit cold feeds.
func (r *Refresher) Start() {
	go r.run()
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
