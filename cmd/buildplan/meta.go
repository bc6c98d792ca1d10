package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"

	"github.com/albertocavalcante/go-buildplan/errdefs"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-homedir"
)

// Meta holds what every command shares: the UI, raw output streams and the
// process context.
type Meta struct {
	Ui cli.Ui

	// Stdout receives plan bytes on --dry-run, untouched by the UI.
	Stdout io.Writer

	// Stderr receives log output.
	Stderr io.Writer

	ctx context.Context

	logLevel  string
	logFormat string
}

func (m *Meta) context() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// flagSet returns a flag set with the shared logging flags. Parse errors are
// reported through the UI.
func (m *Meta) flagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.StringVar(&m.logLevel, "log-level", "error", "Log level: debug, info, warn or error.")
	f.StringVar(&m.logFormat, "log-format", "text", "Log format: text or json.")
	return f
}

// logger creates a logger from the shared flags, writing to Stderr.
func (m *Meta) logger() *slog.Logger {
	return newLogger(m.logLevel, m.logFormat, m.Stderr)
}

// newLogger creates a slog.Logger for the given level and format names.
// Unknown levels fall back to info and unknown formats to text.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}

// usageError reports a command line mistake. Returning RunResultHelp makes
// the CLI print the command help and exit with 1.
func (m *Meta) usageError(msg string) int {
	m.Ui.Error(msg)
	return cli.RunResultHelp
}

// fail prints err as "<kind>: <field>: <message>" lines and returns the exit
// code for its kind. Aggregated errors print one line each.
func (m *Meta) fail(err error) int {
	var merr *multierror.Error
	if errors.As(err, &merr) && len(merr.Errors) > 0 {
		for _, e := range merr.Errors {
			m.Ui.Error(e.Error())
		}
	} else {
		m.Ui.Error(err.Error())
	}
	if code := errdefs.ExitCode(err); code != errdefs.ExitOK {
		return code
	}
	return errdefs.ExitFailure
}

// expandPaths expands a leading ~ in each non-empty path in place.
func expandPaths(paths ...*string) error {
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}
