// Package graph relates build variants to the artifacts their plans use.
//
// Plans are flat: each variant lists the artifacts it was merged with. Read
// side by side, several plans form a bipartite graph that answers questions a
// single plan cannot:
//
//   - Which variants pull in an artifact, and under which configuration
//   - Which artifacts every variant shares, and which only one uses
//   - Whether an artifact resolved to different content in different variants
//
// # Building a Graph
//
//	release, _ := plan.ReadFile("build/plan/release.json")
//	debug, _ := plan.ReadFile("build/plan/debug.json")
//	g := graph.Build(release, debug)
//
// # Querying the Graph
//
//	variants := g.DependentsOf("core-6.0.0.aar")
//	shared := g.Shared()
//	explanation, _ := g.Explain("core-6.0.0.aar")
//
// # Output Formats
//
//	jsonBytes, _ := g.ToJSON()
//	dotString := g.ToDOT()
//	textString := g.ToText()
package graph
