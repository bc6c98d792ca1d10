package repository

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/albertocavalcante/go-buildplan/label"
	digest "github.com/opencontainers/go-digest"
)

// Local serves artifacts from a directory with the Maven layout:
//
//	{root}/com/example/lib/1.0/lib-1.0.aar
//
// Create with a file:// URL through New, or with NewLocal and a native path.
// This enables offline builds against a vendored repository.
type Local struct {
	rootPath string
	cache    sync.Map // map[string]Artifact keyed by coordinate
}

// NewLocal creates a repository rooted at path. The directory must exist.
func NewLocal(path string) (*Local, error) {
	root := filepath.Clean(path)
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("local repository path does not exist: %s", root)
		}
		return nil, fmt.Errorf("cannot access local repository path %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local repository path is not a directory: %s", root)
	}
	return &Local{rootPath: root}, nil
}

func isFileURL(url string) bool {
	return strings.HasPrefix(url, "file://")
}

// parseFileURL extracts the path from a file:// URL.
// Handles both Unix (file:///path) and Windows (file:///C:/path) formats.
func parseFileURL(url string) (string, error) {
	if !isFileURL(url) {
		return "", fmt.Errorf("not a file:// URL: %s", url)
	}
	path := strings.TrimPrefix(url, "file://")
	if path == "" {
		return "", fmt.Errorf("empty path in file:// URL")
	}

	// file:///C:/path -> C:/path
	if len(path) >= 3 && path[0] == '/' && isWindowsDriveLetter(path[1]) && path[2] == ':' {
		path = path[1:]
	}
	return filepath.Clean(path), nil
}

func isWindowsDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// pathToFileURL converts a native path to a file:// URL with forward slashes.
func pathToFileURL(path string) string {
	urlPath := filepath.ToSlash(path)
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && isWindowsDriveLetter(urlPath[0]) && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	return "file://" + urlPath
}

// BaseURL returns the file:// URL for this repository.
func (r *Local) BaseURL() string {
	return pathToFileURL(r.rootPath)
}

// Fetch implements Repository. Extensions are tried in the order given by
// the coordinate.
func (r *Local) Fetch(ctx context.Context, c label.Coordinate) (Artifact, error) {
	key := c.String()
	if cached, ok := r.cache.Load(key); ok {
		return cached.(Artifact), nil
	}

	select {
	case <-ctx.Done():
		return Artifact{}, ctx.Err()
	default:
	}

	for _, ext := range c.Extensions() {
		path := filepath.Join(r.rootPath, filepath.FromSlash(c.RepositoryPath(ext)))
		art, err := digestFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return Artifact{}, &FetchError{Coordinate: key, URL: pathToFileURL(path), Err: err}
		}
		art.Coordinate = c
		art.Extension = ext
		art.Source = r.BaseURL()
		r.cache.Store(key, art)
		return art, nil
	}

	return Artifact{}, &FetchError{
		StatusCode: http.StatusNotFound,
		Coordinate: key,
		URL:        r.BaseURL(),
	}
}

// digestFile computes the identity of a regular file. os.IsNotExist works on
// the returned error.
func digestFile(path string) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Artifact{}, err
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("%s is a directory", path)
	}
	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return Artifact{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return Artifact{Path: path, Digest: d, Size: info.Size()}, nil
}
