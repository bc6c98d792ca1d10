// Package buildplan evaluates declarative application build configurations
// into immutable, serialized build plans.
//
// A configuration declares the project identity, SDK levels, signing
// profiles, build types and dependencies, either in a Starlark-like syntax
// (build.star) or in HCL (build.hcl). Evaluating one build type resolves every
// dependency to a verified local artifact, looks signing secrets up in a
// credential store and merges the result into a BuildPlan that an external
// toolchain can consume.
//
// # Quick Start
//
//	p, err := buildplan.EvaluateFile(ctx, "build.star", "release",
//	    buildplan.WithCredentialStore(credentials.NewEnv("BUILDPLAN_SECRET_")),
//	)
//
//	// Evaluate and write build/plan/release.json next to the config
//	_, err = buildplan.WriteFile(ctx, "build.star", "release", "", plan.FormatJSON)
//
// # Secrets
//
// Configurations never contain secret values, only aliases written as
// secret("alias"). The credential store confirms an alias exists and returns
// an opaque handle; plans, logs and errors carry only "<store>:<alias>".
//
// # Errors
//
// Failures are classified by the sentinel errors re-exported in this package
// (ErrMalformedConfig, ErrMissingArtifact, ...). Use errors.Is to test for a
// kind, and errdefs.ExitCode to map one to a process exit code.
//
// # Thread Safety
//
// The package-level functions are safe for concurrent use. EvaluateAll
// evaluates variants in parallel against one shared artifact cache.
package buildplan

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/albertocavalcante/go-buildplan/config"
	"github.com/albertocavalcante/go-buildplan/errdefs"
	"github.com/albertocavalcante/go-buildplan/plan"
	"github.com/albertocavalcante/go-buildplan/repository"
	"github.com/albertocavalcante/go-buildplan/resolve"
	"golang.org/x/sync/errgroup"
)

// Evaluate loads the configuration at configPath and evaluates variant. The
// returned invocation is in the Merged state, ready to Emit or WriteFile.
func Evaluate(ctx context.Context, configPath, variant string, opts ...Option) (*plan.Invocation, error) {
	cfg, err := newEvalConfig(opts...)
	if err != nil {
		return nil, err
	}
	project, resolver, err := prepare(configPath, cfg)
	if err != nil {
		return nil, err
	}
	return evaluate(ctx, project, resolver, variant, cfg)
}

// EvaluateFile loads the configuration at configPath and returns the merged
// plan for variant.
func EvaluateFile(ctx context.Context, configPath, variant string, opts ...Option) (*plan.BuildPlan, error) {
	inv, err := Evaluate(ctx, configPath, variant, opts...)
	if err != nil {
		return nil, err
	}
	return inv.Plan(), nil
}

// EvaluateAll evaluates every declared variant in parallel. The first failure
// cancels the remaining evaluations and is returned.
func EvaluateAll(ctx context.Context, configPath string, opts ...Option) (map[string]*plan.BuildPlan, error) {
	cfg, err := newEvalConfig(opts...)
	if err != nil {
		return nil, err
	}
	project, resolver, err := prepare(configPath, cfg)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		plans = make(map[string]*plan.BuildPlan)
	)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.concurrency > 0 {
		g.SetLimit(cfg.concurrency)
	}
	for _, name := range project.VariantNames() {
		g.Go(func() error {
			cfg.progress(ProgressEvent{Type: ProgressVariantStart, Variant: name})
			inv, err := evaluate(gctx, project, resolver, name, cfg)
			if err != nil {
				cfg.progress(ProgressEvent{Type: ProgressVariantFailed, Variant: name, Err: err})
				return err
			}
			p := inv.Plan()
			cfg.progress(ProgressEvent{Type: ProgressVariantDone, Variant: name, Dependencies: len(p.Dependencies)})

			mu.Lock()
			plans[name] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// WriteFile evaluates variant and writes the plan to out atomically. An empty
// out selects DefaultPlanPath. Nothing is written when evaluation fails.
func WriteFile(ctx context.Context, configPath, variant, out string, format plan.Format, opts ...Option) (string, error) {
	inv, err := Evaluate(ctx, configPath, variant, opts...)
	if err != nil {
		return "", err
	}
	if out == "" {
		out = DefaultPlanPath(configPath, variant, format)
	}
	if err := inv.WriteFile(out, format); err != nil {
		return "", err
	}
	return out, nil
}

// VerifyFile reads a plan file and checks that every artifact it records
// still has the recorded content.
func VerifyFile(ctx context.Context, planPath string) (*plan.BuildPlan, error) {
	p, err := plan.ReadFile(planPath)
	if err != nil {
		return nil, err
	}
	if err := plan.Verify(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// DefaultPlanPath returns <config dir>/build/plan/<variant>.<ext>.
func DefaultPlanPath(configPath, variant string, format plan.Format) string {
	ext := ".json"
	if format == plan.FormatYAML {
		ext = ".yaml"
	}
	return filepath.Join(filepath.Dir(configPath), "build", "plan", variant+ext)
}

// prepare loads the project and builds the resolver shared by its variants.
func prepare(configPath string, cfg *evalConfig) (*config.Project, *resolve.Resolver, error) {
	project, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.logger.Debug("loaded configuration", "path", project.Source(), "variants", project.VariantNames())

	repo, err := cfg.repositoryFor(project)
	if err != nil {
		return nil, nil, err
	}
	resolverOpts := []resolve.Option{resolve.WithCache(cfg.cache), resolve.WithLogger(cfg.logger)}
	if repo != nil {
		resolverOpts = append(resolverOpts, resolve.WithRepository(repo))
	}
	resolver, err := resolve.New(project.Dir(), resolverOpts...)
	if err != nil {
		return nil, nil, err
	}
	return project, resolver, nil
}

func evaluate(ctx context.Context, project *config.Project, resolver *resolve.Resolver, variant string, cfg *evalConfig) (*plan.Invocation, error) {
	inv, err := plan.NewInvocation(project, resolver, cfg.store,
		plan.WithStrictSigning(cfg.strictSigning),
		plan.WithLogger(cfg.logger.With("variant", variant)),
	)
	if err != nil {
		return nil, err
	}
	if _, err := inv.Evaluate(ctx, variant); err != nil {
		return nil, err
	}
	return inv, nil
}

// repositoryFor returns the repository for coordinate references: the one set
// with WithRepository, or a chain over the configured URLs followed by the
// ones from WithRepositories. It returns nil when there are none.
func (c *evalConfig) repositoryFor(project *config.Project) (repository.Repository, error) {
	if c.repository != nil {
		return c.repository, nil
	}
	urls := append(project.Repositories(), c.repositories...)
	if len(urls) == 0 {
		return nil, nil
	}
	chain, err := repository.NewChainFromURLs(urls, c.remoteOptions()...)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrMalformedConfig, "repositories", err)
	}
	return chain, nil
}

func (c *evalConfig) progress(e ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(e)
	}
}

// Variants lists the build types declared in the configuration at configPath.
func Variants(configPath string) ([]string, error) {
	project, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", configPath, err)
	}
	return project.VariantNames(), nil
}
