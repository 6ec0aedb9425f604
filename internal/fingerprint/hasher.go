package fingerprint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// cacheSize is the maximum number of cached file digests.
// Bounds memory in watch mode, where the same population is hashed repeatedly.
const cacheSize = 4096

// cacheEntry pairs a digest with the stat identity it was computed from.
type cacheEntry struct {
	digest  Fingerprint
	size    int64
	modTime time.Time
}

// Hasher computes file fingerprints with an LRU cache keyed by absolute path.
// A cached digest is reused only when size and mtime are unchanged; any
// mismatch forces a re-read, so the cache can never mask a content edit
// that changed the bytes.
type Hasher struct {
	cache *lru.Cache[string, cacheEntry]
	mu    sync.Mutex
}

// NewHasher creates a new Hasher.
// Returns error if cache initialization fails.
func NewHasher() (*Hasher, error) {
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint cache: %w", err)
	}
	return &Hasher{cache: cache}, nil
}

// File computes the fingerprint of the file at absPath, consulting the cache.
// Returns Absent (and no error) if the file does not exist.
func (h *Hasher) File(absPath string) (Fingerprint, error) {
	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return Absent, nil
	}
	if err != nil {
		return Absent, fmt.Errorf("failed to stat %s: %w", absPath, err)
	}

	h.mu.Lock()
	entry, ok := h.cache.Get(absPath)
	h.mu.Unlock()
	if ok && entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
		return entry.digest, nil
	}

	digest, err := File(absPath)
	if err != nil {
		return Absent, err
	}

	h.mu.Lock()
	h.cache.Add(absPath, cacheEntry{digest: digest, size: info.Size(), modTime: info.ModTime()})
	h.mu.Unlock()

	return digest, nil
}

// HashAll computes fingerprints for relPaths under root in parallel.
// Missing files map to Absent. File hash computations share no mutable
// state beyond the cache, so the worker count follows GOMAXPROCS.
func (h *Hasher) HashAll(ctx context.Context, root string, relPaths []string) (map[string]Fingerprint, error) {
	results := make(map[string]Fingerprint, len(relPaths))
	var resultsMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, rel := range relPaths {
		rel := rel
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			digest, err := h.File(filepath.Join(root, rel))
			if err != nil {
				return err
			}

			resultsMu.Lock()
			results[rel] = digest
			resultsMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Invalidate drops the cached digest for absPath.
func (h *Hasher) Invalidate(absPath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache.Remove(absPath)
}
