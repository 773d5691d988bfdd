package media

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrFetchFailed covers every way retrieving authenticated media can go
// wrong. Not-found, forbidden and transport failures all collapse into this
// one "unavailable" state; the cause is not preserved.
var ErrFetchFailed = errors.New("media: fetch failed")

// Blob is the downloaded content for an opaque server-side file path.
type Blob struct {
	Data        []byte
	ContentType string
	Filepath    string
}

// Fetcher retrieves raw bytes for a file path that requires session
// credentials. Satisfied by backend.Client.
type Fetcher interface {
	FetchFile(ctx context.Context, filepath string) ([]byte, string, error)
}

// BlobSource yields blobs for file paths. Both Loader and CachingLoader
// implement it so the caching layer can be slotted in transparently.
type BlobSource interface {
	Fetch(ctx context.Context, filepath string) (Blob, error)
}

// Loader fetches media bytes through the credentialed file endpoint. Media
// cannot be served from a public URL: the raw endpoint is cookie-gated, so
// every display goes through a fetch like this one.
type Loader struct {
	fetcher Fetcher
}

func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

func (l *Loader) Fetch(ctx context.Context, filepath string) (Blob, error) {
	data, contentType, err := l.fetcher.FetchFile(ctx, filepath)
	if err != nil {
		return Blob{}, ErrFetchFailed
	}
	return Blob{Data: data, ContentType: contentType, Filepath: filepath}, nil
}

type cacheEntry struct {
	blob    Blob
	expires time.Time
}

// CachingLoader wraps a BlobSource with a TTL-based in-memory byte cache so
// repeated views of the same media do not refetch from the backend. Expired
// entries are swept on insert once the map grows past pruneThreshold, so
// paths that are never requested again do not hold their bytes forever.
type CachingLoader struct {
	base BlobSource
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

const pruneThreshold = 64

func NewCachingLoader(base BlobSource, ttl time.Duration) *CachingLoader {
	return NewCachingLoaderWithNow(base, ttl, time.Now)
}

func NewCachingLoaderWithNow(base BlobSource, ttl time.Duration, now func() time.Time) *CachingLoader {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingLoader{
		base:  base,
		ttl:   ttl,
		now:   now,
		items: make(map[string]cacheEntry),
	}
}

// Fetch returns the cached blob when fresh, otherwise it delegates to the
// underlying source and stores the result. Failures are never cached.
func (c *CachingLoader) Fetch(ctx context.Context, filepath string) (Blob, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[filepath]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.blob, nil
	}

	blob, err := c.base.Fetch(ctx, filepath)
	if err != nil {
		return Blob{}, err
	}

	c.mu.Lock()
	if len(c.items) > pruneThreshold {
		c.prune(now)
	}
	c.items[filepath] = cacheEntry{blob: blob, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return blob, nil
}

func (c *CachingLoader) prune(now time.Time) {
	for path, entry := range c.items {
		if !now.Before(entry.expires) {
			delete(c.items, path)
		}
	}
}

// Len reports the number of cached entries.
func (c *CachingLoader) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
