package graph

import (
	"fmt"

	digest "github.com/opencontainers/go-digest"
)

// NodeKind distinguishes the two sides of the graph.
type NodeKind string

const (
	// KindVariant is a build type with an evaluated plan.
	KindVariant NodeKind = "variant"

	// KindArtifact is a dependency artifact, keyed by symbolic name.
	KindArtifact NodeKind = "artifact"
)

// NodeKey uniquely identifies a node.
type NodeKey struct {
	Kind NodeKind
	Name string
}

// String returns "kind:name".
func (k NodeKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Name)
}

// VariantKey returns the key of a variant node.
func VariantKey(name string) NodeKey { return NodeKey{Kind: KindVariant, Name: name} }

// ArtifactKey returns the key of an artifact node.
func ArtifactKey(name string) NodeKey { return NodeKey{Kind: KindArtifact, Name: name} }

// Graph relates the variants of one application to their artifacts.
type Graph struct {
	// Application is the application id shared by the plans.
	Application string

	// Nodes contains every variant and artifact, keyed by NodeKey.
	Nodes map[NodeKey]*Node
}

// Node is a variant or an artifact.
type Node struct {
	Key NodeKey

	// Uses are the outgoing edges of a variant, in plan order.
	Uses []Edge

	// UsedBy are the variants that use an artifact, sorted by name.
	UsedBy []NodeKey
}

// Edge records that a variant uses an artifact.
type Edge struct {
	To            NodeKey
	Configuration string
	Reference     string
	Digest        digest.Digest
}

// Explanation describes how an artifact enters the build.
type Explanation struct {
	// Artifact is the symbolic name being explained.
	Artifact string

	// Uses lists every variant edge to the artifact, sorted by variant.
	Uses []Use

	// Divergent is true when variants resolved the artifact to different
	// content.
	Divergent bool
}

// Use is one variant's use of an artifact.
type Use struct {
	Variant       string
	Configuration string
	Reference     string
	Digest        digest.Digest
}

// String returns a human-readable representation of the use.
func (u Use) String() string {
	return fmt.Sprintf("%s -> %s (%s, %s)", u.Variant, u.Reference, u.Configuration, u.Digest)
}

// Stats provides statistics about the graph.
type Stats struct {
	Variants  int
	Artifacts int
	Edges     int

	// Shared is the number of artifacts used by every variant.
	Shared int
}
