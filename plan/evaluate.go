package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/go-buildplan/config"
	"github.com/albertocavalcante/go-buildplan/credentials"
	"github.com/albertocavalcante/go-buildplan/errdefs"
	"github.com/albertocavalcante/go-buildplan/internal/logging"
	"github.com/albertocavalcante/go-buildplan/resolve"
	digest "github.com/opencontainers/go-digest"
)

// Invocation evaluates a single variant of a project. It is not safe for
// concurrent use; evaluate independent variants with independent invocations.
type Invocation struct {
	project  *config.Project
	resolver *resolve.Resolver
	store    credentials.Store
	strict   bool
	logger   *slog.Logger

	state   State
	failed  error
	variant config.BuildVariant
	signing *Signing
	plan    *BuildPlan
}

// Option configures an Invocation.
type Option func(*Invocation)

// WithStrictSigning makes unsigned release-type variants fail with
// ErrUnresolvedSigningProfile instead of producing a warning.
func WithStrictSigning(strict bool) Option {
	return func(inv *Invocation) { inv.strict = strict }
}

// WithLogger sets the logger. Defaults to a silent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(inv *Invocation) { inv.logger = logger }
}

// NewInvocation prepares the evaluation of project. store may be nil when no
// variant uses a signing profile.
func NewInvocation(project *config.Project, resolver *resolve.Resolver, store credentials.Store, opts ...Option) (*Invocation, error) {
	if project == nil {
		return nil, errors.New("project cannot be nil")
	}
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	inv := &Invocation{project: project, resolver: resolver, store: store}
	for _, opt := range opts {
		opt(inv)
	}
	inv.logger = logging.OrDiscard(inv.logger)
	return inv, nil
}

// State returns the current lifecycle state.
func (inv *Invocation) State() State { return inv.state }

// Plan returns a copy of the merged plan, or nil before Merged.
func (inv *Invocation) Plan() *BuildPlan { return inv.plan.Clone() }

// Evaluate validates and merges the named variant and returns the plan.
//
// Failures are classified: ErrUnknownVariant for an undeclared variant,
// ErrUnresolvedSigningProfile when a signing secret cannot be found, and the
// resolver's errors for dependencies. Secret values never appear in errors.
func (inv *Invocation) Evaluate(ctx context.Context, variant string) (*BuildPlan, error) {
	if inv.failed != nil {
		return nil, fmt.Errorf("invocation already failed: %w", inv.failed)
	}
	if err := inv.validate(ctx, variant); err != nil {
		inv.failed = err
		return nil, err
	}
	if err := inv.merge(ctx); err != nil {
		inv.failed = err
		return nil, err
	}
	return inv.Plan(), nil
}

func (inv *Invocation) validate(ctx context.Context, name string) error {
	if inv.state != Unevaluated {
		return fmt.Errorf("variant %q: invocation is %s", name, inv.state)
	}

	v, ok := inv.project.Variant(name)
	if !ok {
		return errdefs.New(errdefs.ErrUnknownVariant, name, "declared build types: %v", inv.project.VariantNames())
	}

	var signing *Signing
	if v.SigningConfig != "" {
		s, err := inv.lookupSigning(ctx, v.SigningConfig)
		if err != nil {
			return err
		}
		signing = s
	} else if v.IsReleaseType() && inv.strict {
		return errdefs.New(errdefs.ErrUnresolvedSigningProfile, "build_type."+v.Name+".signing_config",
			"release build type has no signing config")
	}

	if err := inv.transition(Unevaluated, Validated); err != nil {
		return err
	}
	inv.variant = v
	inv.signing = signing
	inv.logger.Debug("validated variant", "variant", v.Name, "signed", signing != nil)
	return nil
}

// lookupSigning resolves a signing profile's secrets through the credential
// store. Only handles are kept.
func (inv *Invocation) lookupSigning(ctx context.Context, name string) (*Signing, error) {
	field := "signing_config." + name
	profile, ok := inv.project.SigningProfile(name)
	if !ok {
		return nil, errdefs.New(errdefs.ErrUnresolvedSigningProfile, field, "not declared")
	}
	if inv.store == nil {
		return nil, errdefs.New(errdefs.ErrUnresolvedSigningProfile, field, "no credential store configured")
	}

	lookup := func(suffix string, ref config.SecretRef) (credentials.SecretHandle, error) {
		if ref.IsZero() {
			return credentials.SecretHandle{}, errdefs.New(errdefs.ErrUnresolvedSigningProfile, field+"."+suffix, "no secret declared")
		}
		h, err := inv.store.LookupSecret(ctx, ref.Alias())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return credentials.SecretHandle{}, ctxErr
			}
			return credentials.SecretHandle{}, errdefs.Wrap(errdefs.ErrUnresolvedSigningProfile, field+"."+suffix, err)
		}
		return h, nil
	}

	storeSecret, err := lookup("store_password", profile.StoreSecret)
	if err != nil {
		return nil, err
	}
	keySecret, err := lookup("key_password", profile.KeySecret)
	if err != nil {
		return nil, err
	}

	storeFile := profile.StoreFile
	if !filepath.IsAbs(storeFile) {
		storeFile = filepath.Join(inv.project.Dir(), filepath.FromSlash(storeFile))
	}
	return &Signing{
		Profile:     profile.Name,
		StoreFile:   storeFile,
		KeyAlias:    profile.KeyAlias,
		StoreSecret: storeSecret,
		KeySecret:   keySecret,
	}, nil
}

func (inv *Invocation) merge(ctx context.Context) error {
	if inv.state != Validated {
		return fmt.Errorf("merge: invocation is %s", inv.state)
	}
	v := inv.variant

	arts, err := inv.resolver.ResolveAll(ctx, inv.project.DependenciesFor(v.Name))
	if err != nil {
		return err
	}

	ruleFiles, err := inv.ruleFiles(v)
	if err != nil {
		return err
	}

	var warnings []string
	if v.SigningConfig == "" && v.IsReleaseType() {
		warnings = append(warnings, fmt.Sprintf("build type %q post-processes its output but has no signing config; the package will be unsigned", v.Name))
	}

	id := inv.project.Identity()
	sdk := inv.project.SDK()
	p := &BuildPlan{
		FormatVersion: FormatVersion,
		Config:        inv.project.Source(),
		Application: Application{
			Namespace:     id.Namespace(),
			ApplicationID: id.ApplicationID(),
			VersionCode:   id.VersionCode(),
			VersionName:   id.VersionName(),
		},
		SDK: SDK{Min: sdk.Min(), Target: sdk.Target(), Compile: sdk.Compile()},
		Variant: Variant{
			Name:      v.Name,
			Minify:    v.Minify,
			RuleFiles: ruleFiles,
			Signing:   inv.signing,
		},
		CompileOptions: inv.project.CompileOptions(),
		Dependencies:   make([]Dependency, 0, len(arts)),
		Warnings:       warnings,
	}
	if features := inv.project.Features(); len(features) > 0 {
		p.Features = features
	}
	for _, a := range arts {
		p.Dependencies = append(p.Dependencies, Dependency{
			Name:          a.Name,
			Configuration: a.Configuration,
			Kind:          a.Ref.Kind.String(),
			Reference:     a.Ref.Value,
			Path:          a.Path,
			Digest:        a.Digest,
			Size:          a.Size,
			Source:        a.Source,
		})
	}

	if err := inv.transition(Validated, Merged); err != nil {
		return err
	}
	inv.plan = p
	for _, w := range warnings {
		inv.logger.Warn(w, "variant", v.Name)
	}
	inv.logger.Info("merged build plan", "variant", v.Name, "dependencies", len(p.Dependencies))
	return nil
}

// ruleFiles checks that every local rule file exists and records its digest.
// SDK default rule files are taken as declared.
func (inv *Invocation) ruleFiles(v config.BuildVariant) ([]RuleFile, error) {
	var out []RuleFile
	for _, rf := range v.RuleFiles {
		if rf.SDKDefault {
			out = append(out, RuleFile{Ref: rf.String()})
			continue
		}
		path := rf.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(inv.project.Dir(), filepath.FromSlash(path))
		}
		d, err := digestFile(path)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.ErrMissingArtifact, "build_type."+v.Name+".proguard_files", err)
		}
		out = append(out, RuleFile{Ref: rf.String(), Path: path, Digest: d})
	}
	return out, nil
}

func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}
	return digest.SHA256.FromReader(f)
}

// Emit writes the merged plan to w and moves the invocation to Emitted. The
// plan is serialized completely before anything is written.
func (inv *Invocation) Emit(w io.Writer, format Format) error {
	if inv.state != Merged {
		return fmt.Errorf("emit: invocation is %s, want %s", inv.state, Merged)
	}
	data, err := Marshal(inv.plan, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return inv.transition(Merged, Emitted)
}

// WriteFile writes the merged plan to path atomically and moves the
// invocation to Emitted.
func (inv *Invocation) WriteFile(path string, format Format) error {
	if inv.state != Merged {
		return fmt.Errorf("emit: invocation is %s, want %s", inv.state, Merged)
	}
	if err := WriteFile(path, inv.plan, format); err != nil {
		return fmt.Errorf("write plan %s: %w", path, err)
	}
	inv.logger.Info("wrote build plan", "path", path, "format", string(format))
	return inv.transition(Merged, Emitted)
}
