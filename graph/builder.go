package graph

import (
	"slices"
	"strings"

	"github.com/albertocavalcante/go-buildplan/plan"
)

// Build constructs a Graph from evaluated plans. Nil plans are skipped. A
// variant appearing in more than one plan keeps the last one.
func Build(plans ...*plan.BuildPlan) *Graph {
	g := &Graph{Nodes: make(map[NodeKey]*Node)}

	// First pass: variant nodes and their edges
	for _, p := range plans {
		if p == nil {
			continue
		}
		if g.Application == "" {
			g.Application = p.Application.ApplicationID
		}
		vk := VariantKey(p.Variant.Name)
		node := &Node{Key: vk, Uses: make([]Edge, 0, len(p.Dependencies))}
		for _, d := range p.Dependencies {
			ak := ArtifactKey(d.Name)
			if g.Nodes[ak] == nil {
				g.Nodes[ak] = &Node{Key: ak}
			}
			node.Uses = append(node.Uses, Edge{
				To:            ak,
				Configuration: d.Configuration,
				Reference:     d.Reference,
				Digest:        d.Digest,
			})
		}
		g.Nodes[vk] = node
	}

	// Second pass: reverse edges
	for key, node := range g.Nodes {
		if key.Kind != KindVariant {
			continue
		}
		for _, e := range node.Uses {
			if a := g.Nodes[e.To]; a != nil && !slices.Contains(a.UsedBy, key) {
				a.UsedBy = append(a.UsedBy, key)
			}
		}
	}
	for _, node := range g.Nodes {
		slices.SortFunc(node.UsedBy, func(a, b NodeKey) int { return strings.Compare(a.Name, b.Name) })
	}

	// Artifacts left without users came from a variant that was replaced.
	for key, node := range g.Nodes {
		if key.Kind == KindArtifact && len(node.UsedBy) == 0 {
			delete(g.Nodes, key)
		}
	}
	return g
}
