// Command buildplan evaluates a build configuration into a build plan.
//
// Usage:
//
//	buildplan evaluate --config build.star --variant release [--dry-run]
//	buildplan variants --config build.star
//	buildplan verify --plan build/plan/release.json
//	buildplan diff --old old.json --new new.json
//	buildplan graph --plan release.json --plan debug.json
//
// Exit codes: 0 success, 1 usage or unexpected failure, 2 configuration
// errors, 3 artifact resolution errors, 4 signing errors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mitchellh/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := realMain(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func realMain(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	meta := &Meta{
		Ui: &cli.BasicUi{
			Reader:      stdin,
			Writer:      stdout,
			ErrorWriter: stderr,
		},
		Stdout: stdout,
		Stderr: stderr,
		ctx:    ctx,
	}

	c := cli.NewCLI("buildplan", version)
	c.Args = args
	c.Commands = commands(meta)
	c.HelpWriter = stderr
	c.ErrorWriter = stderr

	code, err := c.Run()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return code
}

func commands(meta *Meta) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"evaluate": func() (cli.Command, error) {
			return &EvaluateCommand{Meta: meta}, nil
		},
		"variants": func() (cli.Command, error) {
			return &VariantsCommand{Meta: meta}, nil
		},
		"verify": func() (cli.Command, error) {
			return &VerifyCommand{Meta: meta}, nil
		},
		"diff": func() (cli.Command, error) {
			return &DiffCommand{Meta: meta}, nil
		},
		"graph": func() (cli.Command, error) {
			return &GraphCommand{Meta: meta}, nil
		},
	}
}
