// Package plan evaluates one build variant of a loaded project into an
// immutable BuildPlan and serializes it for the downstream toolchain.
//
// The lifecycle of an evaluation is a forward-only state machine:
//
//	Unevaluated -> Validated -> Merged -> Emitted
//
// A step that fails leaves the Invocation where it was, and a failed
// Invocation cannot be retried. Serialization is deterministic: evaluating the
// same project twice yields byte-identical output.
package plan

import (
	"github.com/albertocavalcante/go-buildplan/config"
	"github.com/albertocavalcante/go-buildplan/credentials"
	digest "github.com/opencontainers/go-digest"
)

// FormatVersion is the version of the serialized plan layout.
const FormatVersion = 1

// BuildPlan is the fully merged, resolved description of one variant build.
type BuildPlan struct {
	FormatVersion  int                   `json:"formatVersion" yaml:"formatVersion"`
	Config         string                `json:"config" yaml:"config"`
	Application    Application           `json:"application" yaml:"application"`
	SDK            SDK                   `json:"sdk" yaml:"sdk"`
	Variant        Variant               `json:"variant" yaml:"variant"`
	Features       map[string]bool       `json:"features,omitempty" yaml:"features,omitempty"`
	CompileOptions config.CompileOptions `json:"compileOptions" yaml:"compileOptions"`
	Dependencies   []Dependency          `json:"dependencies" yaml:"dependencies"`
	Warnings       []string              `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Application is the project identity.
type Application struct {
	Namespace     string `json:"namespace" yaml:"namespace"`
	ApplicationID string `json:"applicationId" yaml:"applicationId"`
	VersionCode   int    `json:"versionCode" yaml:"versionCode"`
	VersionName   string `json:"versionName" yaml:"versionName"`
}

// SDK holds the SDK levels.
type SDK struct {
	Min     int `json:"min" yaml:"min"`
	Target  int `json:"target" yaml:"target"`
	Compile int `json:"compile" yaml:"compile"`
}

// Variant is the merged build type.
type Variant struct {
	Name      string     `json:"name" yaml:"name"`
	Minify    bool       `json:"minify" yaml:"minify"`
	RuleFiles []RuleFile `json:"ruleFiles,omitempty" yaml:"ruleFiles,omitempty"`
	Signing   *Signing   `json:"signing,omitempty" yaml:"signing,omitempty"`
}

// RuleFile is a post-processing rule file. Ref is "sdk:<name>" for SDK
// defaults, which have no local path or digest.
type RuleFile struct {
	Ref    string        `json:"ref" yaml:"ref"`
	Path   string        `json:"path,omitempty" yaml:"path,omitempty"`
	Digest digest.Digest `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// Signing carries everything the signer needs except the secrets themselves:
// secrets are handles that the signer redeems against its credential store.
type Signing struct {
	Profile     string                   `json:"profile" yaml:"profile"`
	StoreFile   string                   `json:"storeFile" yaml:"storeFile"`
	KeyAlias    string                   `json:"keyAlias" yaml:"keyAlias"`
	StoreSecret credentials.SecretHandle `json:"storeSecret" yaml:"storeSecret"`
	KeySecret   credentials.SecretHandle `json:"keySecret" yaml:"keySecret"`
}

// Dependency is one resolved artifact.
type Dependency struct {
	Name          string        `json:"name" yaml:"name"`
	Configuration string        `json:"configuration" yaml:"configuration"`
	Kind          string        `json:"kind" yaml:"kind"`
	Reference     string        `json:"reference" yaml:"reference"`
	Path          string        `json:"path" yaml:"path"`
	Digest        digest.Digest `json:"digest" yaml:"digest"`
	Size          int64         `json:"size" yaml:"size"`
	Source        string        `json:"source,omitempty" yaml:"source,omitempty"`
}

// Clone returns a deep copy of p.
func (p *BuildPlan) Clone() *BuildPlan {
	if p == nil {
		return nil
	}
	c := *p
	if p.Features != nil {
		c.Features = make(map[string]bool, len(p.Features))
		for k, v := range p.Features {
			c.Features[k] = v
		}
	}
	c.Dependencies = append([]Dependency(nil), p.Dependencies...)
	if c.Dependencies == nil {
		c.Dependencies = []Dependency{}
	}
	c.Warnings = append([]string(nil), p.Warnings...)
	c.Variant.RuleFiles = append([]RuleFile(nil), p.Variant.RuleFiles...)
	if p.Variant.Signing != nil {
		s := *p.Variant.Signing
		c.Variant.Signing = &s
	}
	return &c
}

// Dependency returns the dependency with the given symbolic name.
func (p *BuildPlan) Dependency(name string) (Dependency, bool) {
	for _, d := range p.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}
