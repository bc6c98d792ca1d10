package main

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-buildplan"
)

// VerifyCommand checks a written plan against the file system.
type VerifyCommand struct {
	*Meta
}

func (c *VerifyCommand) Run(args []string) int {
	var planPath string
	f := c.flagSet("verify")
	f.StringVar(&planPath, "plan", "", "")
	if err := f.Parse(args); err != nil {
		return c.usageError(err.Error())
	}
	if planPath == "" {
		return c.usageError("-plan is required")
	}

	p, err := buildplan.VerifyFile(c.context(), planPath)
	if err != nil {
		return c.fail(err)
	}
	c.Ui.Output(fmt.Sprintf("%s: %s plan is current (%d dependencies)", planPath, p.Variant.Name, len(p.Dependencies)))
	return 0
}

func (c *VerifyCommand) Help() string {
	helpText := `
Usage: buildplan verify -plan=<path>

  Re-hashes every artifact recorded in a build plan and reports files that
  went missing, were emptied or changed since the plan was written.
`
	return strings.TrimSpace(helpText)
}

func (c *VerifyCommand) Synopsis() string {
	return "Check that a plan's artifacts are unchanged"
}
