// Package label provides strongly-typed, validated symbolic dependency
// coordinates.
//
// A coordinate has the Maven/Gradle shape:
//
//	group:artifact:version[@extension]
//
// for example "androidx.appcompat:appcompat:1.6.1" or
// "com.github.topjohnwu.libsu:core:6.0.0@aar".
//
// Coordinates are immutable and validated at construction time. The zero
// value is invalid; use ParseCoordinate or NewCoordinate.
package label

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
)

// Coordinate is a validated group:artifact:version reference.
type Coordinate struct {
	group     string
	artifact  string
	version   *version.Version
	rawVer    string
	extension string
}

var (
	groupRegex     = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)
	artifactRegex  = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
	extensionRegex = regexp.MustCompile(`^[a-z0-9]+$`)
)

// ParseCoordinate parses "group:artifact:version[@ext]".
func ParseCoordinate(s string) (Coordinate, error) {
	if s == "" {
		return Coordinate{}, fmt.Errorf("coordinate cannot be empty")
	}

	body, ext, hasExt := strings.Cut(s, "@")
	if hasExt && ext == "" {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: empty extension after @", s)
	}

	parts := strings.Split(body, ":")
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: want group:artifact:version", s)
	}
	return NewCoordinate(parts[0], parts[1], parts[2], ext)
}

// NewCoordinate builds a Coordinate from its parts. ext may be empty.
func NewCoordinate(group, artifact, ver, ext string) (Coordinate, error) {
	if !groupRegex.MatchString(group) {
		return Coordinate{}, fmt.Errorf("invalid group %q", group)
	}
	if !artifactRegex.MatchString(artifact) {
		return Coordinate{}, fmt.Errorf("invalid artifact %q", artifact)
	}
	if ext != "" && !extensionRegex.MatchString(ext) {
		return Coordinate{}, fmt.Errorf("invalid extension %q", ext)
	}
	v, err := version.NewVersion(ver)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid version %q for %s:%s: %w", ver, group, artifact, err)
	}
	return Coordinate{
		group:     group,
		artifact:  artifact,
		version:   v,
		rawVer:    ver,
		extension: ext,
	}, nil
}

// MustCoordinate parses a coordinate or panics. Use only for constants/tests.
func MustCoordinate(s string) Coordinate {
	c, err := ParseCoordinate(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Group returns the group id, e.g. "androidx.appcompat".
func (c Coordinate) Group() string { return c.group }

// Artifact returns the artifact id, e.g. "appcompat".
func (c Coordinate) Artifact() string { return c.artifact }

// Version returns the version exactly as declared.
func (c Coordinate) Version() string { return c.rawVer }

// Extension returns the explicit packaging extension, or "".
func (c Coordinate) Extension() string { return c.extension }

// Name returns the symbolic name "group:artifact" shared by all versions.
func (c Coordinate) Name() string {
	return c.group + ":" + c.artifact
}

// String returns the canonical coordinate form.
func (c Coordinate) String() string {
	if c.group == "" {
		return ""
	}
	s := c.group + ":" + c.artifact + ":" + c.rawVer
	if c.extension != "" {
		s += "@" + c.extension
	}
	return s
}

// IsEmpty returns true for the zero value.
func (c Coordinate) IsEmpty() bool {
	return c.group == ""
}

// Compare orders two coordinates of the same name by version.
// It returns -1, 0 or +1.
func (c Coordinate) Compare(other Coordinate) int {
	if c.version == nil || other.version == nil {
		return strings.Compare(c.rawVer, other.rawVer)
	}
	return c.version.Compare(other.version)
}

// Extensions returns the packaging extensions to try, in order.
// An explicit extension wins; otherwise Android archives are preferred over jars.
func (c Coordinate) Extensions() []string {
	if c.extension != "" {
		return []string{c.extension}
	}
	return []string{"aar", "jar"}
}

// FileName returns "artifact-version.ext".
func (c Coordinate) FileName(ext string) string {
	return c.artifact + "-" + c.rawVer + "." + ext
}

// RepositoryPath returns the Maven layout path of the artifact file, using
// forward slashes: "group/as/dirs/artifact/version/artifact-version.ext".
func (c Coordinate) RepositoryPath(ext string) string {
	return strings.ReplaceAll(c.group, ".", "/") + "/" + c.artifact + "/" + c.rawVer + "/" + c.FileName(ext)
}

// IsCoordinate reports whether s looks like a symbolic coordinate rather than
// a file path. It does not validate the parts.
func IsCoordinate(s string) bool {
	if strings.ContainsAny(s, `/\`) {
		return false
	}
	return strings.Count(s, ":") == 2
}
