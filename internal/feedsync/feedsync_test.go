package feedsync

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewRefresher_InvalidSchedule(t *testing.T) {
	_, err := NewRefresher("not a cron spec", func(ctx context.Context) {}, nil)
	if err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
}

func TestRefresher_StartRunsImmediately(t *testing.T) {
	var mu sync.Mutex
	ran := make(chan struct{})
	var once sync.Once

	r, err := NewRefresher("@every 1h", func(ctx context.Context) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("refresh context has no deadline")
		}
		once.Do(func() { close(ran) })
	}, nil)
	if err != nil {
		t.Fatalf("NewRefresher error: %v", err)
	}

	r.Start()
	defer r.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("initial refresh did not run")
	}
}
