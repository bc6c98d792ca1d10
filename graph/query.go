package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Get returns the node for a key, or nil if not found.
func (g *Graph) Get(key NodeKey) *Node {
	return g.Nodes[key]
}

// Contains returns true if the graph contains the given node.
func (g *Graph) Contains(key NodeKey) bool {
	_, ok := g.Nodes[key]
	return ok
}

// Variants returns the variant names, sorted.
func (g *Graph) Variants() []string {
	return g.names(KindVariant)
}

// Artifacts returns the artifact names, sorted.
func (g *Graph) Artifacts() []string {
	return g.names(KindArtifact)
}

func (g *Graph) names(kind NodeKind) []string {
	var out []string
	for key := range g.Nodes {
		if key.Kind == kind {
			out = append(out, key.Name)
		}
	}
	slices.Sort(out)
	return out
}

// DirectDeps returns the artifact names a variant uses, in plan order.
func (g *Graph) DirectDeps(variant string) []string {
	node := g.Nodes[VariantKey(variant)]
	if node == nil {
		return nil
	}
	out := make([]string, 0, len(node.Uses))
	for _, e := range node.Uses {
		out = append(out, e.To.Name)
	}
	return out
}

// DependentsOf returns the variants that use an artifact, sorted.
func (g *Graph) DependentsOf(artifact string) []string {
	node := g.Nodes[ArtifactKey(artifact)]
	if node == nil {
		return nil
	}
	out := make([]string, 0, len(node.UsedBy))
	for _, k := range node.UsedBy {
		out = append(out, k.Name)
	}
	return out
}

// Shared returns the artifacts used by every variant, sorted.
func (g *Graph) Shared() []string {
	variants := len(g.Variants())
	var out []string
	for _, name := range g.Artifacts() {
		if variants > 0 && len(g.Nodes[ArtifactKey(name)].UsedBy) == variants {
			out = append(out, name)
		}
	}
	return out
}

// Exclusive returns the artifacts used by variant and no other, sorted.
func (g *Graph) Exclusive(variant string) []string {
	var out []string
	for _, name := range g.DirectDeps(variant) {
		users := g.Nodes[ArtifactKey(name)].UsedBy
		if len(users) == 1 && users[0].Name == variant {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Explain returns how an artifact enters each variant.
func (g *Graph) Explain(artifact string) (*Explanation, error) {
	node := g.Nodes[ArtifactKey(artifact)]
	if node == nil {
		return nil, fmt.Errorf("artifact %s not found in graph", artifact)
	}

	exp := &Explanation{Artifact: artifact}
	for _, vk := range node.UsedBy {
		for _, e := range g.Nodes[vk].Uses {
			if e.To.Name != artifact {
				continue
			}
			exp.Uses = append(exp.Uses, Use{
				Variant:       vk.Name,
				Configuration: e.Configuration,
				Reference:     e.Reference,
				Digest:        e.Digest,
			})
		}
	}
	slices.SortStableFunc(exp.Uses, func(a, b Use) int { return strings.Compare(a.Variant, b.Variant) })

	for _, u := range exp.Uses[1:] {
		if u.Digest != exp.Uses[0].Digest {
			exp.Divergent = true
			break
		}
	}
	return exp, nil
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Stats {
	s := Stats{}
	for key, node := range g.Nodes {
		if key.Kind == KindVariant {
			s.Variants++
			s.Edges += len(node.Uses)
		} else {
			s.Artifacts++
		}
	}
	s.Shared = len(g.Shared())
	return s
}
