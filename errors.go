package buildplan

import "github.com/albertocavalcante/go-buildplan/errdefs"

// Error kinds, re-exported so callers can use errors.Is without importing
// errdefs.
var (
	ErrMalformedConfig          = errdefs.ErrMalformedConfig
	ErrInvalidRange             = errdefs.ErrInvalidRange
	ErrMissingArtifact          = errdefs.ErrMissingArtifact
	ErrEmptyArtifact            = errdefs.ErrEmptyArtifact
	ErrUnresolvedCoordinate     = errdefs.ErrUnresolvedCoordinate
	ErrDependencyConflict       = errdefs.ErrDependencyConflict
	ErrUnknownVariant           = errdefs.ErrUnknownVariant
	ErrUnresolvedSigningProfile = errdefs.ErrUnresolvedSigningProfile
)
