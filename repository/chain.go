package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/albertocavalcante/go-buildplan/label"
)

// Compile-time interface compliance checks
var (
	_ Repository = (*Local)(nil)
	_ Repository = (*Remote)(nil)
	_ Repository = (*Chain)(nil)
)

// Chain looks artifacts up across repositories in order.
//
//  1. Repositories are consulted first to last.
//  2. The first repository that serves a group:artifact is used for every
//     later version of it, so one library never mixes sources.
//  3. Any error, not only "not found", moves on to the next repository.
//     Cancellation of ctx stops the lookup.
type Chain struct {
	repos []Repository

	// artifactRepo tracks which repository serves each group:artifact.
	artifactRepo   map[string]int
	artifactRepoMu sync.RWMutex
}

// NewChain creates a chain over repos.
func NewChain(repos ...Repository) (*Chain, error) {
	if len(repos) == 0 {
		return nil, errors.New("no repositories provided")
	}
	return &Chain{
		repos:        repos,
		artifactRepo: make(map[string]int),
	}, nil
}

// NewChainFromURLs creates a chain from repository URLs. Every URL must be
// valid.
func NewChainFromURLs(urls []string, opts ...RemoteOption) (*Chain, error) {
	if len(urls) == 0 {
		return nil, errors.New("no repository URLs provided")
	}
	repos := make([]Repository, 0, len(urls))
	for _, url := range urls {
		repo, err := New(url, opts...)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return NewChain(repos...)
}

// Fetch implements Repository.
func (rc *Chain) Fetch(ctx context.Context, c label.Coordinate) (Artifact, error) {
	rc.artifactRepoMu.RLock()
	idx, found := rc.artifactRepo[c.Name()]
	rc.artifactRepoMu.RUnlock()

	if found {
		return rc.repos[idx].Fetch(ctx, c)
	}

	var failures []string
	for i, repo := range rc.repos {
		art, err := repo.Fetch(ctx, c)
		if err == nil {
			rc.artifactRepoMu.Lock()
			if _, exists := rc.artifactRepo[c.Name()]; !exists {
				rc.artifactRepo[c.Name()] = i
			}
			rc.artifactRepoMu.Unlock()
			return art, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Artifact{}, ctxErr
		}
		failures = append(failures, fmt.Sprintf("%s: %v", repo.BaseURL(), err))
	}

	return Artifact{}, &FetchError{
		Coordinate: c.String(),
		Err:        fmt.Errorf("not found in any repository:\n  %s", strings.Join(failures, "\n  ")),
	}
}

// BaseURL returns the URL of the first repository in the chain.
func (rc *Chain) BaseURL() string {
	return rc.repos[0].BaseURL()
}

// Repositories returns the base URLs of the chained repositories in order.
func (rc *Chain) Repositories() []string {
	urls := make([]string, len(rc.repos))
	for i, repo := range rc.repos {
		urls[i] = repo.BaseURL()
	}
	return urls
}
