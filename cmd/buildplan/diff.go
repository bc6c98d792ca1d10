package main

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-buildplan/plan"
	"github.com/mitchellh/colorstring"
)

// DiffCommand compares two plan files.
type DiffCommand struct {
	*Meta
}

func (c *DiffCommand) Run(args []string) int {
	var (
		oldPath, newPath string
		noColor          bool
	)
	f := c.flagSet("diff")
	f.StringVar(&oldPath, "old", "", "")
	f.StringVar(&newPath, "new", "", "")
	f.BoolVar(&noColor, "no-color", false, "")
	if err := f.Parse(args); err != nil {
		return c.usageError(err.Error())
	}
	if oldPath == "" || newPath == "" {
		return c.usageError("both -old and -new are required")
	}

	oldPlan, err := plan.ReadFile(oldPath)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	newPlan, err := plan.ReadFile(newPath)
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	colorize := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: noColor,
		Reset:   true,
	}
	line := func(color, format string, args ...any) {
		c.Ui.Output(colorize.Color("[" + color + "]" + fmt.Sprintf(format, args...)))
	}

	d := plan.Compare(oldPlan, newPlan)
	if d.IsEmpty() {
		c.Ui.Output("No changes.")
		return 0
	}
	for _, s := range d.Settings {
		line("yellow", "~ %s: %q -> %q", s.Field, s.Old, s.New)
	}
	for _, a := range d.Added {
		line("green", "+ %s (%s)", a.Name, a.Reference)
	}
	for _, r := range d.Removed {
		line("red", "- %s (%s)", r.Name, r.Reference)
	}
	for _, u := range d.Changed {
		line("yellow", "~ %s: %s -> %s", u.Name, u.OldDigest, u.NewDigest)
	}
	c.Ui.Output(fmt.Sprintf("%d changes.", d.TotalChanges()))
	return 0
}

func (c *DiffCommand) Help() string {
	helpText := `
Usage: buildplan diff -old=<path> -new=<path> [-no-color]

  Shows the settings and dependencies that differ between two build plans.
`
	return strings.TrimSpace(helpText)
}

func (c *DiffCommand) Synopsis() string {
	return "Compare two build plans"
}
