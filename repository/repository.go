// Package repository fetches artifacts named by symbolic coordinates from
// Maven-layout repositories.
//
// Both local (file://) and remote (https://, http://) repositories are
// supported, as well as an ordered Chain of them. Every implementation returns
// an Artifact that lives on the local file system together with its content
// digest, so callers never see a partially downloaded file.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/albertocavalcante/go-buildplan/label"
	digest "github.com/opencontainers/go-digest"
)

// ErrUnavailable indicates the repository could not supply the artifact.
var ErrUnavailable = errors.New("artifact unavailable")

// Repository supplies artifacts by coordinate.
type Repository interface {
	// Fetch returns the artifact for c. Errors wrap ErrUnavailable.
	Fetch(ctx context.Context, c label.Coordinate) (Artifact, error)

	// BaseURL identifies the repository.
	BaseURL() string
}

// Artifact is a fetched artifact file.
type Artifact struct {
	Coordinate label.Coordinate
	Extension  string
	Path       string
	Digest     digest.Digest
	Size       int64
	Source     string
}

// FetchError describes why a repository could not supply a coordinate.
type FetchError struct {
	StatusCode int
	Coordinate string
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Coordinate)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.URL != "" {
		b.WriteString(" from ")
		b.WriteString(e.URL)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}

// IsNotFound reports whether err means the repository does not have the
// artifact, as opposed to a transport or server failure.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
}

// New creates a repository for url, selecting the implementation by scheme.
// file:// URLs give a Local repository; http and https give a Remote one.
func New(url string, opts ...RemoteOption) (Repository, error) {
	switch {
	case isFileURL(url):
		path, err := parseFileURL(url)
		if err != nil {
			return nil, err
		}
		return NewLocal(path)
	case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"):
		return NewRemote(url, opts...)
	default:
		return nil, fmt.Errorf("unsupported repository URL %q: want file://, http:// or https://", url)
	}
}
