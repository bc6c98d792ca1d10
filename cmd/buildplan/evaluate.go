package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/albertocavalcante/go-buildplan"
	"github.com/albertocavalcante/go-buildplan/credentials"
	"github.com/albertocavalcante/go-buildplan/plan"
)

// defaultEnvPrefix prefixes secret aliases when they are looked up in the
// process environment.
const defaultEnvPrefix = "BUILDPLAN_SECRET_"

// EvaluateCommand evaluates one variant and emits its plan.
type EvaluateCommand struct {
	*Meta
}

// stringSlice collects a repeatable string flag.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func (c *EvaluateCommand) Run(args []string) int {
	var (
		configPath, variant, out, format string
		credentialsFile, envPrefix       string
		cacheDir                         string
		dryRun, strict                   bool
		timeout                          time.Duration
		repos                            stringSlice
	)
	f := c.flagSet("evaluate")
	f.StringVar(&configPath, "config", "", "")
	f.StringVar(&variant, "variant", "", "")
	f.BoolVar(&dryRun, "dry-run", false, "")
	f.StringVar(&out, "out", "", "")
	f.StringVar(&format, "format", "", "")
	f.BoolVar(&strict, "strict-signing", false, "")
	f.StringVar(&credentialsFile, "credentials", "", "")
	f.StringVar(&envPrefix, "env-prefix", defaultEnvPrefix, "")
	f.StringVar(&cacheDir, "cache-dir", "", "")
	f.DurationVar(&timeout, "timeout", 0, "")
	f.Var(&repos, "repository", "")
	if err := f.Parse(args); err != nil {
		return c.usageError(err.Error())
	}
	if configPath == "" || variant == "" {
		return c.usageError("both -config and -variant are required")
	}
	if err := expandPaths(&configPath, &out, &credentialsFile, &cacheDir); err != nil {
		return c.usageError(err.Error())
	}

	var planFormat plan.Format
	switch {
	case format != "":
		pf, err := plan.ParseFormat(format)
		if err != nil {
			return c.usageError(err.Error())
		}
		planFormat = pf
	case out != "":
		planFormat = plan.FormatForPath(out)
	default:
		planFormat = plan.FormatJSON
	}

	store, err := credentialStore(credentialsFile, envPrefix)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	logger := c.logger()
	opts := []buildplan.Option{
		buildplan.WithCredentialStore(store),
		buildplan.WithStrictSigning(strict),
		buildplan.WithLogger(logger),
	}
	if len(repos) > 0 {
		opts = append(opts, buildplan.WithRepositories(repos...))
	}
	if cacheDir != "" {
		opts = append(opts, buildplan.WithCacheDir(cacheDir))
	}
	if timeout > 0 {
		opts = append(opts, buildplan.WithTimeout(timeout))
	}

	inv, err := buildplan.Evaluate(c.context(), configPath, variant, opts...)
	if err != nil {
		return c.fail(err)
	}
	for _, w := range inv.Plan().Warnings {
		c.Ui.Warn("warning: " + w)
	}

	if dryRun {
		if err := inv.Emit(c.Stdout, planFormat); err != nil {
			c.Ui.Error(err.Error())
			return 1
		}
		return 0
	}

	if out == "" {
		out = buildplan.DefaultPlanPath(configPath, variant, planFormat)
	}
	if err := inv.WriteFile(out, planFormat); err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	c.Ui.Output(fmt.Sprintf("Wrote %s plan to %s", variant, out))
	return 0
}

// credentialStore chains the properties file, if any, before the environment.
func credentialStore(path, envPrefix string) (credentials.Store, error) {
	env := credentials.NewEnv(envPrefix)
	if path == "" {
		return env, nil
	}
	props, err := credentials.LoadProperties(path)
	if err != nil {
		return nil, err
	}
	return credentials.NewChain(props, env), nil
}

func (c *EvaluateCommand) Help() string {
	helpText := `
Usage: buildplan evaluate -config=<path> -variant=<name> [options]

  Evaluates one build variant of a configuration and writes its build plan.
  Nothing is written when evaluation fails.

Options:

  -config=path           Configuration file (build.star or build.hcl).
  -variant=name          Build type to evaluate.
  -dry-run               Print the plan to stdout instead of writing it.
  -out=path              Plan destination. Defaults to
                         <config dir>/build/plan/<variant>.json.
  -format=json|yaml      Plan format. Defaults to the -out extension.
  -strict-signing        Fail release variants that have no signing config.
  -credentials=path      Properties file mapping secret aliases to values.
                         Consulted before the environment.
  -env-prefix=prefix     Environment prefix for secret aliases.
                         Defaults to BUILDPLAN_SECRET_.
  -repository=url        Extra artifact repository. Repeatable.
  -cache-dir=path        Download cache for remote repositories.
  -timeout=duration      Per-request timeout for remote repositories.
  -log-level=level       debug, info, warn or error. Defaults to error.
  -log-format=format     text or json. Defaults to text.

Exit codes:

  0  plan emitted
  2  malformed configuration, invalid range or unknown variant
  3  artifact missing, empty, unresolved or conflicting
  4  signing profile could not be resolved
`
	return strings.TrimSpace(helpText)
}

func (c *EvaluateCommand) Synopsis() string {
	return "Evaluate a build variant into a build plan"
}
