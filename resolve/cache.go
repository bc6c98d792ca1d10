package resolve

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/albertocavalcante/go-buildplan/label"
	"github.com/albertocavalcante/go-buildplan/repository"
	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes artifact identities for the whole process. It is safe for
// concurrent use and is meant to be shared by every Resolver evaluating the
// same project.
//
// File entries are keyed by path, size and modification time, so an edited
// file is hashed again. Repository entries are keyed by repository and
// coordinate. Only successes are stored; a failed lookup is retried next time.
// Concurrent misses for one key are collapsed into a single lookup.
type Cache struct {
	mu     sync.RWMutex
	files  map[fileKey]fileEntry
	coords map[string]repository.Artifact

	group singleflight.Group
}

type fileKey struct {
	path  string
	size  int64
	mtime int64
}

func (k fileKey) String() string {
	return fmt.Sprintf("file:%s:%d:%d", k.path, k.size, k.mtime)
}

type fileEntry struct {
	digest digest.Digest
	size   int64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		files:  make(map[fileKey]fileEntry),
		coords: make(map[string]repository.Artifact),
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files) + len(c.coords)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[fileKey]fileEntry)
	c.coords = make(map[string]repository.Artifact)
}

// file returns the identity of the regular file at path, described by info.
func (c *Cache) file(path string, info os.FileInfo) (fileEntry, error) {
	key := fileKey{path: path, size: info.Size(), mtime: info.ModTime().UnixNano()}

	c.mu.RLock()
	e, ok := c.files[key]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		d, err := digest.SHA256.FromReader(f)
		if err != nil {
			return nil, err
		}
		e := fileEntry{digest: d, size: info.Size()}

		c.mu.Lock()
		c.files[key] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return fileEntry{}, err
	}
	return v.(fileEntry), nil
}

// fetch returns the artifact for coord from repo.
func (c *Cache) fetch(ctx context.Context, repo repository.Repository, coord label.Coordinate) (repository.Artifact, error) {
	key := repo.BaseURL() + "|" + coord.String()

	c.mu.RLock()
	art, ok := c.coords[key]
	c.mu.RUnlock()
	if ok {
		return art, nil
	}

	if err := ctx.Err(); err != nil {
		return repository.Artifact{}, err
	}

	// The shared fetch must not fail every waiter because the caller that
	// started it went away. Each caller stops waiting on its own context.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("coord:"+key, func() (any, error) {
		art, err := repo.Fetch(fetchCtx, coord)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.coords[key] = art
		c.mu.Unlock()
		return art, nil
	})
	select {
	case <-ctx.Done():
		return repository.Artifact{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return repository.Artifact{}, res.Err
		}
		return res.Val.(repository.Artifact), nil
	}
}
