package main

import (
	"strings"

	"github.com/albertocavalcante/go-buildplan"
)

// VariantsCommand lists the build types of a configuration.
type VariantsCommand struct {
	*Meta
}

func (c *VariantsCommand) Run(args []string) int {
	var configPath string
	f := c.flagSet("variants")
	f.StringVar(&configPath, "config", "", "")
	if err := f.Parse(args); err != nil {
		return c.usageError(err.Error())
	}
	if configPath == "" {
		return c.usageError("-config is required")
	}

	names, err := buildplan.Variants(configPath)
	if err != nil {
		return c.fail(err)
	}
	for _, name := range names {
		c.Ui.Output(name)
	}
	return 0
}

func (c *VariantsCommand) Help() string {
	helpText := `
Usage: buildplan variants -config=<path>

  Lists the build types declared in a configuration, in declaration order.
`
	return strings.TrimSpace(helpText)
}

func (c *VariantsCommand) Synopsis() string {
	return "List the build variants of a configuration"
}
