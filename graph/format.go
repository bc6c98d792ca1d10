package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

const separatorWidth = 60 // Width of separator lines in text output

// jsonGraph is the JSON shape of a Graph.
type jsonGraph struct {
	Application string        `json:"application,omitempty"`
	Variants    []jsonVariant `json:"variants"`
	Artifacts   []jsonNode    `json:"artifacts"`
}

type jsonVariant struct {
	Name string     `json:"name"`
	Uses []jsonEdge `json:"uses"`
}

type jsonEdge struct {
	Artifact      string `json:"artifact"`
	Configuration string `json:"configuration"`
	Reference     string `json:"reference"`
	Digest        string `json:"digest"`
}

type jsonNode struct {
	Name   string   `json:"name"`
	UsedBy []string `json:"usedBy"`
}

// ToJSON outputs the graph as indented JSON, sorted for stable output.
func (g *Graph) ToJSON() ([]byte, error) {
	out := jsonGraph{
		Application: g.Application,
		Variants:    []jsonVariant{},
		Artifacts:   []jsonNode{},
	}
	for _, name := range g.Variants() {
		v := jsonVariant{Name: name, Uses: []jsonEdge{}}
		for _, e := range g.Nodes[VariantKey(name)].Uses {
			v.Uses = append(v.Uses, jsonEdge{
				Artifact:      e.To.Name,
				Configuration: e.Configuration,
				Reference:     e.Reference,
				Digest:        e.Digest.String(),
			})
		}
		out.Variants = append(out.Variants, v)
	}
	for _, name := range g.Artifacts() {
		out.Artifacts = append(out.Artifacts, jsonNode{Name: name, UsedBy: g.DependentsOf(name)})
	}
	return json.MarshalIndent(out, "", "  ")
}

// ToDOT outputs the graph in Graphviz DOT format.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph buildplan {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	for _, name := range g.Variants() {
		fmt.Fprintf(&buf, "  %q [style=bold];\n", VariantKey(name).String())
	}
	for _, name := range g.Artifacts() {
		attrs := fmt.Sprintf("label=%q", name)
		if exp, err := g.Explain(name); err == nil && exp.Divergent {
			attrs += ", color=red"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", ArtifactKey(name).String(), attrs)
	}

	buf.WriteString("\n")

	for _, name := range g.Variants() {
		for _, e := range g.Nodes[VariantKey(name)].Uses {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", VariantKey(name).String(), e.To.String(), e.Configuration)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToText outputs a human-readable text representation of the graph.
func (g *Graph) ToText() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Variant Graph (application: %s)\n", g.Application)
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	stats := g.Stats()
	fmt.Fprintf(&buf, "Variants: %d\n", stats.Variants)
	fmt.Fprintf(&buf, "Artifacts: %d\n", stats.Artifacts)
	fmt.Fprintf(&buf, "Shared by all variants: %d\n\n", stats.Shared)

	tree := treeprint.NewWithRoot(g.Application)
	for _, name := range g.Variants() {
		branch := tree.AddBranch(name)
		for _, e := range g.Nodes[VariantKey(name)].Uses {
			branch.AddMetaNode(e.Configuration, e.To.Name)
		}
	}
	buf.WriteString(tree.String())
	return buf.String()
}

// ToExplainText outputs a human-readable explanation for an artifact.
func (g *Graph) ToExplainText(artifact string) (string, error) {
	exp, err := g.Explain(artifact)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Explanation for: %s\n", exp.Artifact)
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")
	buf.WriteString("Used by:\n")
	for i, u := range exp.Uses {
		fmt.Fprintf(&buf, "  %d. %s\n", i+1, u.String())
	}
	if exp.Divergent {
		buf.WriteString("\nContent differs between variants.\n")
	}
	return buf.String(), nil
}
