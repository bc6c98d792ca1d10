package config

import (
	"maps"
	"slices"
	"strings"
)

// ProjectIdentity is the application's identity. It is immutable; construct it
// with NewProjectIdentity.
type ProjectIdentity struct {
	namespace     string
	applicationID string
	versionCode   int
	versionName   string
}

// Namespace returns the code namespace, e.g. "pro.magisk".
func (p ProjectIdentity) Namespace() string { return p.namespace }

// ApplicationID returns the published application id.
func (p ProjectIdentity) ApplicationID() string { return p.applicationID }

// VersionCode returns the monotonic, positive version code.
func (p ProjectIdentity) VersionCode() int { return p.versionCode }

// VersionName returns the free-form version name.
func (p ProjectIdentity) VersionName() string { return p.versionName }

// SdkTargets holds the SDK levels. Invariant: 0 < Min <= Target <= Compile.
type SdkTargets struct {
	min     int
	target  int
	compile int
}

// Min returns the minimum supported SDK level.
func (s SdkTargets) Min() int { return s.min }

// Target returns the target SDK level.
func (s SdkTargets) Target() int { return s.target }

// Compile returns the SDK level compiled against.
func (s SdkTargets) Compile() int { return s.compile }

// SecretRef names a secret held by a credential store. It never carries the
// secret value.
type SecretRef struct {
	alias string
}

// Alias returns the credential store alias.
func (r SecretRef) Alias() string { return r.alias }

// IsZero reports whether no secret was declared.
func (r SecretRef) IsZero() bool { return r.alias == "" }

// String renders the reference the way it is written in config files.
func (r SecretRef) String() string {
	if r.alias == "" {
		return ""
	}
	return `secret("` + r.alias + `")`
}

// SigningProfile is a named set of references needed to sign a package.
type SigningProfile struct {
	Name string

	// StoreFile is the key store location as declared (relative to the
	// project directory unless absolute).
	StoreFile string

	// KeyAlias is the key entry inside the key store. It is an identifier,
	// not a secret.
	KeyAlias string

	StoreSecret SecretRef
	KeySecret   SecretRef
}

// RuleFile is one post-processing (shrinker) rule file.
type RuleFile struct {
	// Path is project-relative, or the SDK file name when SDKDefault is set.
	Path string

	// SDKDefault marks a rule file shipped with the SDK
	// (declared with default_proguard_file).
	SDKDefault bool
}

const sdkRulePrefix = "sdk:"

// String renders "sdk:<name>" for SDK defaults and the path otherwise.
func (r RuleFile) String() string {
	if r.SDKDefault {
		return sdkRulePrefix + r.Path
	}
	return r.Path
}

// ParseRuleFile is the inverse of RuleFile.String.
func ParseRuleFile(s string) RuleFile {
	if name, ok := strings.CutPrefix(s, sdkRulePrefix); ok {
		return RuleFile{Path: name, SDKDefault: true}
	}
	return RuleFile{Path: s}
}

// BuildVariant is a named build-type overlay.
type BuildVariant struct {
	Name   string
	Minify bool

	// SigningConfig names a SigningProfile, or is empty for unsigned builds.
	SigningConfig string

	// RuleFiles are applied in declaration order.
	RuleFiles []RuleFile
}

// IsReleaseType reports whether the variant post-processes its output, which
// is what distinguishes a release-style build from a debug one.
func (v BuildVariant) IsReleaseType() bool {
	return v.Minify || len(v.RuleFiles) > 0
}

func (v BuildVariant) clone() BuildVariant {
	v.RuleFiles = slices.Clone(v.RuleFiles)
	return v
}

// DependencyKind distinguishes the shapes of a dependency reference.
type DependencyKind int

const (
	// KindCoordinate is a symbolic group:artifact:version reference.
	KindCoordinate DependencyKind = iota
	// KindFile is a single local file.
	KindFile
	// KindFileTree is a directory plus include globs.
	KindFileTree
)

func (k DependencyKind) String() string {
	switch k {
	case KindCoordinate:
		return "coordinate"
	case KindFile:
		return "file"
	case KindFileTree:
		return "file_tree"
	default:
		return "unknown"
	}
}

// Dependency configurations.
const (
	Implementation = "implementation"
	CompileOnly    = "compile_only"
	RuntimeOnly    = "runtime_only"
)

var configurations = []string{Implementation, CompileOnly, RuntimeOnly}

// DependencyReference is one declared dependency.
type DependencyReference struct {
	Kind DependencyKind

	// Configuration is one of Implementation, CompileOnly or RuntimeOnly.
	Configuration string

	// Value is the coordinate, the file path, or the tree directory.
	Value string

	// Include holds doublestar patterns for KindFileTree.
	Include []string

	// Variant restricts the dependency to one variant when non-empty.
	Variant string
}

// String returns the reference as declared, used in diagnostics.
func (d DependencyReference) String() string {
	if d.Kind == KindFileTree {
		return d.Value + "/{" + strings.Join(d.Include, ",") + "}"
	}
	return d.Value
}

// AppliesTo reports whether the dependency participates in the named variant.
func (d DependencyReference) AppliesTo(variant string) bool {
	return d.Variant == "" || d.Variant == variant
}

// CompileOptions holds Java language levels.
type CompileOptions struct {
	SourceCompatibility string `json:"sourceCompatibility,omitempty" yaml:"sourceCompatibility,omitempty"`
	TargetCompatibility string `json:"targetCompatibility,omitempty" yaml:"targetCompatibility,omitempty"`
}

// Project is the immutable result of loading a configuration source.
// All accessors return copies.
type Project struct {
	source       string
	dir          string
	identity     ProjectIdentity
	sdk          SdkTargets
	signing      map[string]SigningProfile
	variants     []BuildVariant
	dependencies []DependencyReference
	features     map[string]bool
	compile      CompileOptions
	repositories []string
}

// Source returns the path or name the project was loaded from.
func (p *Project) Source() string { return p.source }

// Dir returns the directory relative paths are resolved against.
func (p *Project) Dir() string { return p.dir }

// Identity returns the project identity.
func (p *Project) Identity() ProjectIdentity { return p.identity }

// SDK returns the SDK targets.
func (p *Project) SDK() SdkTargets { return p.sdk }

// CompileOptions returns the Java language levels.
func (p *Project) CompileOptions() CompileOptions { return p.compile }

// Repositories returns the declared artifact repository URLs in priority order.
func (p *Project) Repositories() []string { return slices.Clone(p.repositories) }

// Features returns a copy of the feature flags.
func (p *Project) Features() map[string]bool { return maps.Clone(p.features) }

// SigningProfile returns the named signing profile.
func (p *Project) SigningProfile(name string) (SigningProfile, bool) {
	sp, ok := p.signing[name]
	return sp, ok
}

// SigningProfiles returns all signing profiles sorted by name.
func (p *Project) SigningProfiles() []SigningProfile {
	out := make([]SigningProfile, 0, len(p.signing))
	for _, name := range slices.Sorted(maps.Keys(p.signing)) {
		out = append(out, p.signing[name])
	}
	return out
}

// Variant returns the named build variant.
func (p *Project) Variant(name string) (BuildVariant, bool) {
	for _, v := range p.variants {
		if v.Name == name {
			return v.clone(), true
		}
	}
	return BuildVariant{}, false
}

// Variants returns the declared variants in declaration order.
func (p *Project) Variants() []BuildVariant {
	out := make([]BuildVariant, len(p.variants))
	for i, v := range p.variants {
		out[i] = v.clone()
	}
	return out
}

// VariantNames returns the declared variant names in declaration order.
func (p *Project) VariantNames() []string {
	names := make([]string, len(p.variants))
	for i, v := range p.variants {
		names[i] = v.Name
	}
	return names
}

// Dependencies returns every declared dependency in declaration order.
func (p *Project) Dependencies() []DependencyReference {
	out := make([]DependencyReference, len(p.dependencies))
	for i, d := range p.dependencies {
		d.Include = slices.Clone(d.Include)
		out[i] = d
	}
	return out
}

// DependenciesFor returns the dependencies that apply to the named variant.
func (p *Project) DependenciesFor(variant string) []DependencyReference {
	var out []DependencyReference
	for _, d := range p.Dependencies() {
		if d.AppliesTo(variant) {
			out = append(out, d)
		}
	}
	return out
}
