package plan

import (
	"context"
	"fmt"
	"os"

	"github.com/albertocavalcante/go-buildplan/errdefs"
	"github.com/hashicorp/go-multierror"
)

// Verify re-hashes every artifact and local rule file recorded in p and
// reports drift: ErrMissingArtifact for files that disappeared,
// ErrEmptyArtifact for files that were truncated, and ErrDependencyConflict
// for files whose content changed. All drift is collected; the returned error
// is nil when the plan still matches the file system.
func Verify(ctx context.Context, p *BuildPlan) error {
	if p == nil {
		return fmt.Errorf("nil plan")
	}
	var errs *multierror.Error
	for _, d := range p.Dependencies {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(d.Path)
		if err != nil {
			errs = multierror.Append(errs, errdefs.Wrap(errdefs.ErrMissingArtifact, d.Name, err))
			continue
		}
		if info.Size() == 0 {
			errs = multierror.Append(errs, errdefs.New(errdefs.ErrEmptyArtifact, d.Name, "%s is empty", d.Path))
			continue
		}
		got, err := digestFile(d.Path)
		if err != nil {
			errs = multierror.Append(errs, errdefs.Wrap(errdefs.ErrMissingArtifact, d.Name, err))
			continue
		}
		if got != d.Digest {
			errs = multierror.Append(errs, errdefs.New(errdefs.ErrDependencyConflict, d.Name,
				"%s changed: planned %s, found %s", d.Path, d.Digest, got))
		}
	}

	for _, rf := range p.Variant.RuleFiles {
		if rf.Path == "" {
			continue
		}
		got, err := digestFile(rf.Path)
		if err != nil {
			errs = multierror.Append(errs, errdefs.Wrap(errdefs.ErrMissingArtifact, rf.Ref, err))
			continue
		}
		if got != rf.Digest {
			errs = multierror.Append(errs, errdefs.New(errdefs.ErrDependencyConflict, rf.Ref,
				"%s changed: planned %s, found %s", rf.Path, rf.Digest, got))
		}
	}
	return errs.ErrorOrNil()
}
