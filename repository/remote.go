package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/albertocavalcante/go-buildplan/internal/logging"
	"github.com/albertocavalcante/go-buildplan/label"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	digest "github.com/opencontainers/go-digest"
)

const (
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	defaultRetryMax = 3
)

// Remote downloads artifacts from a Maven repository over HTTP.
//
// Transient failures (connection errors, 5xx, 429) are retried with backoff
// before the fetch fails with ErrUnavailable. Downloads land in a cache
// directory through a temporary file and a rename, and are checked against the
// published .sha256 file when the repository has one.
type Remote struct {
	baseURL  string
	cacheDir string
	client   *retryablehttp.Client
	logger   *slog.Logger
	cache    sync.Map // map[string]Artifact keyed by coordinate
}

// RemoteOption configures a Remote.
type RemoteOption func(*remoteConfig) error

type remoteConfig struct {
	httpClient *http.Client
	cacheDir   string
	timeout    time.Duration
	retryMax   int
	retryWait  time.Duration
	logger     *slog.Logger
}

// WithHTTPClient sets the underlying HTTP client. Its transport is reused; the
// retry policy stays with the repository.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(c *remoteConfig) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		c.httpClient = client
		return nil
	}
}

// WithCacheDir sets where downloads are stored. Defaults to
// $XDG_CACHE_HOME/buildplan/artifacts (os.UserCacheDir).
func WithCacheDir(dir string) RemoteOption {
	return func(c *remoteConfig) error {
		if dir == "" {
			return errors.New("cache dir cannot be empty")
		}
		c.cacheDir = dir
		return nil
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(c *remoteConfig) error {
		if d < 0 {
			return fmt.Errorf("timeout cannot be negative: %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithRetries sets the retry count and the minimum wait between attempts.
func WithRetries(max int, wait time.Duration) RemoteOption {
	return func(c *remoteConfig) error {
		if max < 0 {
			return fmt.Errorf("retry count cannot be negative: %d", max)
		}
		c.retryMax = max
		c.retryWait = wait
		return nil
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) RemoteOption {
	return func(c *remoteConfig) error {
		c.logger = logger
		return nil
	}
}

// NewRemote creates a repository for an http(s) base URL.
func NewRemote(baseURL string, opts ...RemoteOption) (*Remote, error) {
	if !strings.HasPrefix(baseURL, "https://") && !strings.HasPrefix(baseURL, "http://") {
		return nil, fmt.Errorf("remote repository URL must be http(s): %q", baseURL)
	}

	cfg := remoteConfig{timeout: DefaultTimeout, retryMax: defaultRetryMax, retryWait: time.Second}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.cacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("no cache dir configured and no user cache dir: %w", err)
		}
		cfg.cacheDir = filepath.Join(dir, "buildplan", "artifacts")
	}
	if cfg.httpClient == nil {
		cfg.httpClient = cleanhttp.DefaultPooledClient()
	}
	cfg.logger = logging.OrDiscard(cfg.logger)

	httpClient := *cfg.httpClient
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &httpClient
	client.RetryMax = cfg.retryMax
	client.RetryWaitMin = cfg.retryWait
	if client.RetryWaitMax < cfg.retryWait {
		client.RetryWaitMax = cfg.retryWait
	}
	client.Logger = cfg.logger

	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Remote{
		baseURL:  baseURL,
		cacheDir: filepath.Join(cfg.cacheDir, digest.FromString(baseURL).Encoded()[:16]),
		client:   client,
		logger:   cfg.logger,
	}, nil
}

// BaseURL returns the repository base URL.
func (r *Remote) BaseURL() string {
	return r.baseURL
}

// Fetch implements Repository. A file already present in the cache directory
// is reused without contacting the server.
func (r *Remote) Fetch(ctx context.Context, c label.Coordinate) (Artifact, error) {
	key := c.String()
	if cached, ok := r.cache.Load(key); ok {
		return cached.(Artifact), nil
	}

	for _, ext := range c.Extensions() {
		rel := c.RepositoryPath(ext)
		local := filepath.Join(r.cacheDir, filepath.FromSlash(rel))

		art, err := digestFile(local)
		if err != nil {
			if !os.IsNotExist(err) {
				return Artifact{}, &FetchError{Coordinate: key, URL: pathToFileURL(local), Err: err}
			}
			art, err = r.download(ctx, key, r.baseURL+"/"+rel, local)
		}
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return Artifact{}, err
		}

		art.Coordinate = c
		art.Extension = ext
		art.Source = r.baseURL
		r.cache.Store(key, art)
		return art, nil
	}

	return Artifact{}, &FetchError{
		StatusCode: http.StatusNotFound,
		Coordinate: key,
		URL:        r.baseURL,
	}
}

func (r *Remote) download(ctx context.Context, key, url, dest string) (Artifact, error) {
	fail := func(status int, err error) (Artifact, error) {
		return Artifact{}, &FetchError{StatusCode: status, Coordinate: key, URL: url, Err: err}
	}

	resp, err := r.get(ctx, url)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail(resp.StatusCode, nil)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fail(0, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp.*")
	if err != nil {
		return fail(0, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	digester := digest.SHA256.Digester()
	size, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), resp.Body)
	if err != nil {
		return fail(0, fmt.Errorf("download: %w", err))
	}
	got := digester.Digest()

	want, err := r.publishedChecksum(ctx, url+".sha256")
	if err != nil {
		return fail(0, err)
	}
	if want != "" && want != got.Encoded() {
		return fail(0, fmt.Errorf("checksum mismatch: published sha256:%s, downloaded %s", want, got))
	}

	if err := tmp.Close(); err != nil {
		return fail(0, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fail(0, err)
	}

	r.logger.Debug("downloaded artifact", "coordinate", key, "url", url, "digest", got.String(), "size", size)
	return Artifact{Path: dest, Digest: got, Size: size}, nil
}

// publishedChecksum returns the hex digest from a Maven .sha256 file, or ""
// when the repository does not publish one.
func (r *Remote) publishedChecksum(ctx context.Context, url string) (string, error) {
	resp, err := r.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("checksum %s: status %d", url, resp.StatusCode)
	}

	// The file holds the hex digest, optionally followed by the file name.
	line, err := bufio.NewReader(io.LimitReader(resp.Body, 1024)).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("checksum %s: %w", url, err)
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	sum := strings.ToLower(fields[0])
	if err := digest.NewDigestFromEncoded(digest.SHA256, sum).Validate(); err != nil {
		return "", fmt.Errorf("checksum %s: %w", url, err)
	}
	return sum, nil
}

func (r *Remote) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return r.client.Do(req)
}
