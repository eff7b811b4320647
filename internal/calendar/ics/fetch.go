package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	feedCacheKeyPrefix = "breakly:ics:feed:"

	defaultFetchTimeout = 15 * time.Second
	maxFeedBodyBytes    = 4 << 20
)

// cachedFeed is the cache record for one feed URL: the last body plus the
// HTTP validators needed for conditional refetching.
type cachedFeed struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Body         []byte    `json:"body"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// FeedCache stores cachedFeed records keyed by URL.
type FeedCache interface {
	Get(ctx context.Context, url string) (cachedFeed, bool, error)
	Set(ctx context.Context, url string, entry cachedFeed) error
}

type redisFeedCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFeedCache(client *redis.Client, ttl time.Duration) FeedCache {
	return &redisFeedCache{client: client, ttl: ttl}
}

func (c *redisFeedCache) Get(ctx context.Context, url string) (cachedFeed, bool, error) {
	raw, err := c.client.Get(ctx, feedCacheKey(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cachedFeed{}, false, nil
		}
		return cachedFeed{}, false, err
	}

	var entry cachedFeed
	if err := json.Unmarshal(raw, &entry); err != nil {
		return cachedFeed{}, false, err
	}
	return entry, true, nil
}

func (c *redisFeedCache) Set(ctx context.Context, url string, entry cachedFeed) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, feedCacheKey(url), raw, c.ttl).Err()
}

func feedCacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return feedCacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Fetcher fetches ICS feeds over HTTP with ETag/Last-Modified conditional
// requests backed by a FeedCache. On a network failure it falls back to the
// cached body when one exists.
type Fetcher struct {
	client *http.Client
	cache  FeedCache
}

func NewFetcher(cache FeedCache) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: defaultFetchTimeout},
		cache:  cache,
	}
}

// Fetch returns the feed body and whether it was served from cache.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, bool, error) {
	if url == "" {
		return nil, false, errors.New("feed URL is empty")
	}

	var cached cachedFeed
	var haveCached bool
	if f.cache != nil {
		cached, haveCached, _ = f.cache.Get(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if haveCached {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if haveCached && len(cached.Body) > 0 {
			return cached.Body, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodyBytes))
		if err != nil {
			return nil, false, err
		}
		if f.cache != nil {
			_ = f.cache.Set(ctx, url, cachedFeed{
				URL:          url,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				Body:         body,
				FetchedAt:    time.Now().UTC(),
			})
		}
		return body, false, nil

	case http.StatusNotModified:
		if haveCached && len(cached.Body) > 0 {
			return cached.Body, true, nil
		}
		return nil, false, errors.New("304 response without cached body")

	default:
		if haveCached && len(cached.Body) > 0 {
			return cached.Body, true, nil
		}
		return nil, false, fmt.Errorf("feed fetch failed: status %d", resp.StatusCode)
	}
}
