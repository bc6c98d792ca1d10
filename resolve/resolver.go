// Package resolve turns declared dependency references into verified
// artifacts.
//
// The resolver fails closed: a reference that does not end in an existing,
// readable, non-empty file is an error, never a silent skip.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/albertocavalcante/go-buildplan/config"
	"github.com/albertocavalcante/go-buildplan/errdefs"
	"github.com/albertocavalcante/go-buildplan/internal/logging"
	"github.com/albertocavalcante/go-buildplan/label"
	"github.com/albertocavalcante/go-buildplan/repository"
	"github.com/bmatcuk/doublestar/v4"
	digest "github.com/opencontainers/go-digest"
)

// ResolvedArtifact is a dependency reference bound to concrete content.
type ResolvedArtifact struct {
	// Ref is the reference as declared. For file_tree entries it is the
	// expanded single-file reference.
	Ref config.DependencyReference

	// Name is the symbolic name used for conflict detection: group:artifact
	// for coordinates, the file name for local files.
	Name string

	Configuration string
	Path          string
	Digest        digest.Digest
	Size          int64

	// Source is the repository that served a coordinate; empty for files.
	Source string
}

// Resolver resolves references relative to a project directory.
type Resolver struct {
	baseDir string
	repo    repository.Repository
	cache   *Cache
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithRepository sets the repository used for coordinate references.
// Without one, every coordinate fails with ErrUnresolvedCoordinate.
func WithRepository(repo repository.Repository) Option {
	return func(r *Resolver) error {
		r.repo = repo
		return nil
	}
}

// WithCache shares an artifact cache between resolvers.
func WithCache(cache *Cache) Option {
	return func(r *Resolver) error {
		if cache == nil {
			return errors.New("cache cannot be nil")
		}
		r.cache = cache
		return nil
	}
}

// WithLogger sets the logger. Defaults to a silent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) error {
		r.logger = logger
		return nil
	}
}

// New creates a resolver. Relative file references are resolved against
// baseDir, normally the directory holding the configuration.
func New(baseDir string, opts ...Option) (*Resolver, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	r := &Resolver{baseDir: abs}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	r.logger = logging.OrDiscard(r.logger)
	return r, nil
}

// BaseDir returns the directory relative paths are resolved against.
func (r *Resolver) BaseDir() string { return r.baseDir }

// Resolve resolves a single file or coordinate reference. The same reference
// always yields the same artifact as long as the underlying content is
// unchanged.
func (r *Resolver) Resolve(ctx context.Context, ref config.DependencyReference) (ResolvedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return ResolvedArtifact{}, err
	}
	switch ref.Kind {
	case config.KindFile:
		return r.resolveFile(ref)
	case config.KindCoordinate:
		return r.resolveCoordinate(ctx, ref)
	case config.KindFileTree:
		return ResolvedArtifact{}, errdefs.New(errdefs.ErrMalformedConfig, ref.String(), "file tree must be expanded before resolution")
	default:
		return ResolvedArtifact{}, errdefs.New(errdefs.ErrMalformedConfig, ref.String(), "unknown dependency kind %d", ref.Kind)
	}
}

func (r *Resolver) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.baseDir, filepath.FromSlash(p))
}

func (r *Resolver) resolveFile(ref config.DependencyReference) (ResolvedArtifact, error) {
	path := r.abs(ref.Value)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ResolvedArtifact{}, errdefs.New(errdefs.ErrMissingArtifact, ref.Value, "no such file %s", path)
		}
		return ResolvedArtifact{}, errdefs.Wrap(errdefs.ErrMissingArtifact, ref.Value, err)
	}
	if !info.Mode().IsRegular() {
		return ResolvedArtifact{}, errdefs.New(errdefs.ErrMissingArtifact, ref.Value, "%s is not a regular file", path)
	}
	if info.Size() == 0 {
		return ResolvedArtifact{}, errdefs.New(errdefs.ErrEmptyArtifact, ref.Value, "%s is empty", path)
	}

	e, err := r.cache.file(path, info)
	if err != nil {
		return ResolvedArtifact{}, errdefs.Wrap(errdefs.ErrMissingArtifact, ref.Value, err)
	}
	return ResolvedArtifact{
		Ref:           ref,
		Name:          filepath.Base(path),
		Configuration: ref.Configuration,
		Path:          path,
		Digest:        e.digest,
		Size:          e.size,
	}, nil
}

func (r *Resolver) resolveCoordinate(ctx context.Context, ref config.DependencyReference) (ResolvedArtifact, error) {
	coord, err := label.ParseCoordinate(ref.Value)
	if err != nil {
		return ResolvedArtifact{}, errdefs.Wrap(errdefs.ErrMalformedConfig, ref.Value, err)
	}
	if r.repo == nil {
		return ResolvedArtifact{}, errdefs.New(errdefs.ErrUnresolvedCoordinate, ref.Value, "no repositories configured")
	}

	art, err := r.cache.fetch(ctx, r.repo, coord)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ResolvedArtifact{}, ctxErr
		}
		return ResolvedArtifact{}, errdefs.Wrap(errdefs.ErrUnresolvedCoordinate, ref.Value, err)
	}
	if art.Size == 0 {
		return ResolvedArtifact{}, errdefs.New(errdefs.ErrEmptyArtifact, ref.Value, "%s from %s is empty", coord, art.Source)
	}

	r.logger.Debug("resolved coordinate", "coordinate", coord.String(), "source", art.Source, "digest", art.Digest.String())
	return ResolvedArtifact{
		Ref:           ref,
		Name:          coord.Name(),
		Configuration: ref.Configuration,
		Path:          art.Path,
		Digest:        art.Digest,
		Size:          art.Size,
		Source:        art.Source,
	}, nil
}

// Expand turns a file_tree reference into one file reference per matching
// file, sorted by path. Other references are returned unchanged. Without
// include patterns every file in the tree matches.
func (r *Resolver) Expand(ref config.DependencyReference) ([]config.DependencyReference, error) {
	if ref.Kind != config.KindFileTree {
		return []config.DependencyReference{ref}, nil
	}

	dir := r.abs(ref.Value)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.New(errdefs.ErrMissingArtifact, ref.String(), "no such directory %s", dir)
		}
		return nil, errdefs.Wrap(errdefs.ErrMissingArtifact, ref.String(), err)
	}
	if !info.IsDir() {
		return nil, errdefs.New(errdefs.ErrMissingArtifact, ref.String(), "%s is not a directory", dir)
	}

	patterns := ref.Include
	if len(patterns) == 0 {
		patterns = []string{"**"}
	}

	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var matches []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errdefs.New(errdefs.ErrMalformedConfig, ref.String(), "invalid include pattern %q", pattern)
		}
		found, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errdefs.Wrap(errdefs.ErrMissingArtifact, ref.String(), err)
		}
		for _, m := range found {
			if !seen[m] {
				seen[m] = true
				matches = append(matches, m)
			}
		}
	}
	slices.Sort(matches)

	if len(matches) == 0 {
		r.logger.Debug("file tree matched nothing", "dir", dir, "include", ref.Include)
	}

	out := make([]config.DependencyReference, len(matches))
	for i, m := range matches {
		out[i] = config.DependencyReference{
			Kind:          config.KindFile,
			Configuration: ref.Configuration,
			Value:         filepath.ToSlash(filepath.Join(ref.Value, filepath.FromSlash(m))),
			Variant:       ref.Variant,
		}
	}
	return out, nil
}

// ResolveAll expands and resolves refs in declaration order.
//
// Two references with identical content are collapsed into the first one. Two
// references with the same symbolic name but different content fail with
// ErrDependencyConflict. The first failure aborts the whole resolution.
func (r *Resolver) ResolveAll(ctx context.Context, refs []config.DependencyReference) ([]ResolvedArtifact, error) {
	var (
		out      []ResolvedArtifact
		byName   = make(map[string]ResolvedArtifact)
		byDigest = make(map[digest.Digest]bool)
	)
	for _, declared := range refs {
		expanded, err := r.Expand(declared)
		if err != nil {
			return nil, err
		}
		for _, ref := range expanded {
			art, err := r.Resolve(ctx, ref)
			if err != nil {
				return nil, err
			}

			if prev, ok := byName[art.Name]; ok && prev.Digest != art.Digest {
				return nil, errdefs.New(errdefs.ErrDependencyConflict, art.Name,
					"%s (%s) and %s (%s) have different content",
					prev.Ref.Value, prev.Digest, art.Ref.Value, art.Digest)
			}
			if _, ok := byName[art.Name]; !ok {
				byName[art.Name] = art
			}
			if byDigest[art.Digest] {
				r.logger.Debug("dropping duplicate artifact", "ref", art.Ref.Value, "digest", art.Digest.String())
				continue
			}
			byDigest[art.Digest] = true
			out = append(out, art)
		}
	}
	return out, nil
}
