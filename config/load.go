// Package config loads declarative project configuration into an immutable
// Project.
//
// Two source syntaxes are accepted and produce identical projects:
//
//   - Starlark (".star", ".bzl", "BUILD.plan", anything not ".hcl"), parsed
//     with the buildtools parser:
//
//     android_application(namespace = "pro.magisk", application_id = "pro.magisk",
//     min_sdk = 24, target_sdk = 34, compile_sdk = 34,
//     version_code = 55555, version_name = "master")
//
//   - HCL (".hcl"), decoded with gohcl.
//
// Secrets are never written in plain text; signing fields take
// secret("alias") and the alias is looked up in a credential store at
// evaluation time.
//
// Loading is pure: the only file read is the source itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-buildplan/errdefs"
	"github.com/hashicorp/go-multierror"
)

// Load reads and parses a configuration file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrMalformedConfig, path, fmt.Errorf("failed to read config: %w", err))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrMalformedConfig, path, err)
	}
	return LoadContent(abs, data)
}

// LoadContent parses configuration bytes. filename selects the syntax and
// its directory anchors relative paths.
func LoadContent(filename string, data []byte) (*Project, error) {
	var d *declarations
	if IsHCL(filename) {
		d = parseHCL(filename, data)
	} else {
		d = parseStarlark(filename, data)
	}
	return d.assemble()
}

// IsHCL reports whether filename selects the HCL syntax.
func IsHCL(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".hcl")
}

// application holds the declared identity and SDK fields. Nil pointers are
// fields that were not declared.
type application struct {
	namespace     *string
	applicationID *string
	versionCode   *int
	versionName   *string
	minSdk        *int
	targetSdk     *int
	compileSdk    *int
}

// declarations is the flat, syntax-independent result of parsing. Parsers
// fill it; assemble validates it and freezes it into a Project.
type declarations struct {
	filename     string
	app          *application
	signing      []SigningProfile
	variants     []BuildVariant
	dependencies []DependencyReference
	features     map[string]bool
	compile      CompileOptions
	repositories []string
	errs         *multierror.Error
}

func newDeclarations(filename string) *declarations {
	return &declarations{
		filename: filename,
		features: make(map[string]bool),
	}
}

// malformed records a shape problem. Loading continues so every problem in the
// file is reported at once.
func (d *declarations) malformed(field, format string, args ...any) {
	d.errs = multierror.Append(d.errs, errdefs.New(errdefs.ErrMalformedConfig, field, format, args...))
}

func (d *declarations) assemble() (*Project, error) {
	d.checkRequired()
	d.checkNames()
	if err := d.failure(); err != nil {
		return nil, err
	}

	identity, err := NewProjectIdentity(*d.app.namespace, *d.app.applicationID, *d.app.versionCode, *d.app.versionName)
	if err != nil {
		return nil, err
	}
	sdk, err := NewSdkTargets(*d.app.minSdk, *d.app.targetSdk, *d.app.compileSdk)
	if err != nil {
		return nil, err
	}

	signing := make(map[string]SigningProfile, len(d.signing))
	for _, sp := range d.signing {
		signing[sp.Name] = sp
	}

	return &Project{
		source:       d.filename,
		dir:          filepath.Dir(d.filename),
		identity:     identity,
		sdk:          sdk,
		signing:      signing,
		variants:     d.variants,
		dependencies: d.dependencies,
		features:     d.features,
		compile:      d.compile,
		repositories: d.repositories,
	}, nil
}

// failure folds the collected problems into a single MalformedConfig error.
func (d *declarations) failure() error {
	if d.errs == nil || len(d.errs.Errors) == 0 {
		return nil
	}
	if len(d.errs.Errors) == 1 {
		return d.errs.Errors[0]
	}
	first := ""
	if e, ok := d.errs.Errors[0].(*errdefs.Error); ok {
		first = e.Field
	}
	return &errdefs.Error{
		Kind:  errdefs.ErrMalformedConfig,
		Field: first,
		Msg:   fmt.Sprintf("%d problems in %s", len(d.errs.Errors), filepath.Base(d.filename)),
		Err:   d.errs.ErrorOrNil(),
	}
}

// reported reports whether a problem was already recorded for field, so a
// present but malformed attribute is not also reported as missing.
func (d *declarations) reported(field string) bool {
	if d.errs == nil {
		return false
	}
	for _, err := range d.errs.Errors {
		var e *errdefs.Error
		if errors.As(err, &e) && e.Field == field {
			return true
		}
	}
	return false
}

func (d *declarations) checkRequired() {
	if d.app == nil {
		d.malformed("application", "missing application declaration")
		return
	}
	required := []struct {
		field   string
		present bool
	}{
		{"application.namespace", d.app.namespace != nil},
		{"application.application_id", d.app.applicationID != nil},
		{"application.version_code", d.app.versionCode != nil},
		{"application.version_name", d.app.versionName != nil},
		{"application.min_sdk", d.app.minSdk != nil},
		{"application.target_sdk", d.app.targetSdk != nil},
		{"application.compile_sdk", d.app.compileSdk != nil},
	}
	for _, r := range required {
		if !r.present && !d.reported(r.field) {
			d.malformed(r.field, "required field is missing")
		}
	}
	if d.app.namespace != nil && !isDottedName(*d.app.namespace) {
		d.malformed("application.namespace", "%q is not a dotted identifier", *d.app.namespace)
	}
	if d.app.applicationID != nil && !isDottedName(*d.app.applicationID) {
		d.malformed("application.application_id", "%q is not a dotted identifier", *d.app.applicationID)
	}
}

func (d *declarations) checkNames() {
	profiles := make(map[string]bool, len(d.signing))
	for _, sp := range d.signing {
		field := "signing_config." + sp.Name
		switch {
		case sp.Name == "":
			d.malformed("signing_config", "name is required")
			continue
		case profiles[sp.Name]:
			d.malformed(field, "declared more than once")
		}
		profiles[sp.Name] = true
		if sp.StoreFile == "" {
			d.malformed(field+".store_file", "required field is missing")
		}
		if sp.KeyAlias == "" {
			d.malformed(field+".key_alias", "required field is missing")
		}
		if sp.StoreSecret.IsZero() {
			d.malformed(field+".store_password", "required field is missing")
		}
		if sp.KeySecret.IsZero() {
			d.malformed(field+".key_password", "required field is missing")
		}
	}

	seen := make(map[string]bool, len(d.variants))
	for _, v := range d.variants {
		field := "build_type." + v.Name
		switch {
		case v.Name == "":
			d.malformed("build_type", "name is required")
			continue
		case seen[v.Name]:
			d.malformed(field, "declared more than once")
		}
		seen[v.Name] = true
		if v.SigningConfig != "" && !profiles[v.SigningConfig] {
			d.malformed(field+".signing_config", "references undeclared signing config %q", v.SigningConfig)
		}
		for _, rf := range v.RuleFiles {
			if rf.Path == "" {
				d.malformed(field+".proguard_files", "empty rule file path")
			}
		}
	}

	for i, dep := range d.dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		if !slices.Contains(configurations, dep.Configuration) {
			d.malformed(field, "unknown configuration %q", dep.Configuration)
		}
		if dep.Variant != "" && !seen[dep.Variant] {
			d.malformed(field+".variant", "references undeclared build type %q", dep.Variant)
		}
		if dep.Kind == KindFileTree && len(dep.Include) == 0 {
			d.malformed(field+".include", "file_tree needs at least one include pattern")
		}
	}
}

func isDottedName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			digit := r >= '0' && r <= '9'
			if !letter && !(digit && i > 0) {
				return false
			}
		}
	}
	return true
}

// NewProjectIdentity validates and builds a ProjectIdentity.
func NewProjectIdentity(namespace, applicationID string, versionCode int, versionName string) (ProjectIdentity, error) {
	if namespace == "" {
		return ProjectIdentity{}, errdefs.New(errdefs.ErrMalformedConfig, "application.namespace", "required field is missing")
	}
	if applicationID == "" {
		return ProjectIdentity{}, errdefs.New(errdefs.ErrMalformedConfig, "application.application_id", "required field is missing")
	}
	if versionCode <= 0 {
		return ProjectIdentity{}, errdefs.New(errdefs.ErrInvalidRange, "application.version_code", "must be positive, got %d", versionCode)
	}
	return ProjectIdentity{
		namespace:     namespace,
		applicationID: applicationID,
		versionCode:   versionCode,
		versionName:   versionName,
	}, nil
}

// NewSdkTargets validates and builds SdkTargets.
func NewSdkTargets(minSdk, targetSdk, compileSdk int) (SdkTargets, error) {
	if minSdk <= 0 {
		return SdkTargets{}, errdefs.New(errdefs.ErrInvalidRange, "application.min_sdk", "must be positive, got %d", minSdk)
	}
	if minSdk > targetSdk {
		return SdkTargets{}, errdefs.New(errdefs.ErrInvalidRange, "application.min_sdk", "min_sdk %d exceeds target_sdk %d", minSdk, targetSdk)
	}
	if targetSdk > compileSdk {
		return SdkTargets{}, errdefs.New(errdefs.ErrInvalidRange, "application.target_sdk", "target_sdk %d exceeds compile_sdk %d", targetSdk, compileSdk)
	}
	return SdkTargets{min: minSdk, target: targetSdk, compile: compileSdk}, nil
}

// NewSecretRef builds a reference to a credential store alias.
func NewSecretRef(alias string) (SecretRef, error) {
	if alias == "" {
		return SecretRef{}, fmt.Errorf("secret alias cannot be empty")
	}
	if strings.ContainsAny(alias, " \t\r\n") {
		return SecretRef{}, fmt.Errorf("secret alias %q contains whitespace", alias)
	}
	return SecretRef{alias: alias}, nil
}
