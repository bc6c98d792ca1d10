package main

import (
	"strings"

	"github.com/albertocavalcante/go-buildplan/graph"
	"github.com/albertocavalcante/go-buildplan/plan"
)

// GraphCommand renders the variants of several plans against their artifacts.
type GraphCommand struct {
	*Meta
}

func (c *GraphCommand) Run(args []string) int {
	var (
		plans    stringSlice
		format   string
		artifact string
	)
	f := c.flagSet("graph")
	f.Var(&plans, "plan", "")
	f.StringVar(&format, "format", "text", "")
	f.StringVar(&artifact, "explain", "", "")
	if err := f.Parse(args); err != nil {
		return c.usageError(err.Error())
	}
	if len(plans) == 0 {
		return c.usageError("at least one -plan is required")
	}

	loaded := make([]*plan.BuildPlan, 0, len(plans))
	for _, path := range plans {
		p, err := plan.ReadFile(path)
		if err != nil {
			c.Ui.Error(err.Error())
			return 1
		}
		loaded = append(loaded, p)
	}
	g := graph.Build(loaded...)

	if artifact != "" {
		text, err := g.ToExplainText(artifact)
		if err != nil {
			c.Ui.Error(err.Error())
			return 1
		}
		c.Ui.Output(strings.TrimRight(text, "\n"))
		return 0
	}

	switch format {
	case "text":
		c.Ui.Output(strings.TrimRight(g.ToText(), "\n"))
	case "dot":
		c.Ui.Output(strings.TrimRight(g.ToDOT(), "\n"))
	case "json":
		data, err := g.ToJSON()
		if err != nil {
			c.Ui.Error(err.Error())
			return 1
		}
		c.Ui.Output(string(data))
	default:
		return c.usageError("unknown graph format " + format)
	}
	return 0
}

func (c *GraphCommand) Help() string {
	helpText := `
Usage: buildplan graph -plan=<path> [-plan=<path> ...] [options]

  Relates the variants of several build plans to the artifacts they use.

Options:

  -plan=path          Plan file. Repeatable.
  -format=format      text, dot or json. Defaults to text.
  -explain=artifact   Show which variants use an artifact and how.
`
	return strings.TrimSpace(helpText)
}

func (c *GraphCommand) Synopsis() string {
	return "Show which variants use which artifacts"
}
