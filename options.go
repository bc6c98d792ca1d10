package buildplan

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/albertocavalcante/go-buildplan/credentials"
	"github.com/albertocavalcante/go-buildplan/internal/logging"
	"github.com/albertocavalcante/go-buildplan/repository"
	"github.com/albertocavalcante/go-buildplan/resolve"
)

// Option configures evaluation behavior.
type Option func(*evalConfig) error

// evalConfig holds all evaluation configuration.
type evalConfig struct {
	store         credentials.Store
	repositories  []string
	repository    repository.Repository
	cacheDir      string
	cache         *resolve.Cache
	httpClient    *http.Client
	timeout       time.Duration
	strictSigning bool
	concurrency   int
	onProgress    func(ProgressEvent)

	// logger is the structured logger for debug/info output.
	// If nil, logging is disabled (silent mode).
	logger *slog.Logger
}

// WithCredentialStore sets the store that signing secret aliases are looked
// up in. Without one, any variant with a signing config fails with
// ErrUnresolvedSigningProfile.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *evalConfig) error {
		c.store = store
		return nil
	}
}

// WithRepositories adds repository URLs, consulted after the ones declared in
// the configuration.
func WithRepositories(urls ...string) Option {
	return func(c *evalConfig) error {
		c.repositories = append(c.repositories, urls...)
		return nil
	}
}

// WithRepository replaces URL-based repositories with repo.
func WithRepository(repo repository.Repository) Option {
	return func(c *evalConfig) error {
		c.repository = repo
		return nil
	}
}

// WithCacheDir sets where remote artifacts are downloaded.
func WithCacheDir(dir string) Option {
	return func(c *evalConfig) error {
		c.cacheDir = dir
		return nil
	}
}

// WithCache shares an artifact identity cache across calls.
func WithCache(cache *resolve.Cache) Option {
	return func(c *evalConfig) error {
		c.cache = cache
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client for remote repositories.
func WithHTTPClient(client *http.Client) Option {
	return func(c *evalConfig) error {
		c.httpClient = client
		return nil
	}
}

// WithTimeout sets the per-request timeout for remote repositories.
func WithTimeout(d time.Duration) Option {
	return func(c *evalConfig) error {
		c.timeout = d
		return nil
	}
}

// WithStrictSigning makes release-type variants without a signing config an
// error instead of a warning.
func WithStrictSigning(strict bool) Option {
	return func(c *evalConfig) error {
		c.strictSigning = strict
		return nil
	}
}

// WithConcurrency bounds how many variants EvaluateAll evaluates at once.
// Zero means no limit.
func WithConcurrency(n int) Option {
	return func(c *evalConfig) error {
		c.concurrency = n
		return nil
	}
}

// WithProgress sets a callback for EvaluateAll progress events. It may be
// called from several goroutines.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(c *evalConfig) error {
		c.onProgress = fn
		return nil
	}
}

// WithLogger sets a structured logger for evaluation diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "buildplan")
//	buildplan.EvaluateFile(ctx, "build.star", "release", buildplan.WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *evalConfig) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *evalConfig) validate() error {
	if c.repository != nil && len(c.repositories) > 0 {
		return errors.New("WithRepository and WithRepositories are mutually exclusive")
	}
	if c.timeout < 0 {
		return errors.New("timeout must be positive")
	}
	if c.concurrency < 0 {
		return errors.New("concurrency cannot be negative")
	}
	return nil
}

// newEvalConfig creates a configuration by applying the given options and
// validating the result.
func newEvalConfig(opts ...Option) (*evalConfig, error) {
	c := &evalConfig{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.logger = logging.OrDiscard(c.logger)
	if c.cache == nil {
		c.cache = resolve.NewCache()
	}
	return c, nil
}

// remoteOptions converts the configuration into options for remote
// repositories.
func (c *evalConfig) remoteOptions() []repository.RemoteOption {
	opts := []repository.RemoteOption{repository.WithLogger(c.logger)}
	if c.cacheDir != "" {
		opts = append(opts, repository.WithCacheDir(c.cacheDir))
	}
	if c.httpClient != nil {
		opts = append(opts, repository.WithHTTPClient(c.httpClient))
	}
	if c.timeout > 0 {
		opts = append(opts, repository.WithTimeout(c.timeout))
	}
	return opts
}
