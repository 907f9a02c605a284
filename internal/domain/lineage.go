package domain

import (
	"sort"
	"strings"
)

// UnknownSource marks nodes no catalog source claimed; it never mixes with
// real source tags.
const UnknownSource = "unknown"

const (
	EdgeTypeCrossSystem = "cross_system"
	EdgeTypeSameSystem  = "same_system"
)

// ProvenanceSet is the set of catalog systems that reported a node.
type ProvenanceSet map[string]bool

func NewProvenanceSet(tags ...string) ProvenanceSet {
	ps := make(ProvenanceSet, len(tags))
	for _, t := range tags {
		ps[t] = true
	}
	return ps
}

func (ps ProvenanceSet) Add(tag string) {
	ps[tag] = true
}

func (ps ProvenanceSet) Has(tag string) bool {
	return ps[tag]
}

func (ps ProvenanceSet) Equal(other ProvenanceSet) bool {
	if len(ps) != len(other) {
		return false
	}
	for tag := range ps {
		if !other[tag] {
			return false
		}
	}
	return true
}

func (ps ProvenanceSet) Sorted() []string {
	out := make([]string, 0, len(ps))
	for tag := range ps {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// String renders the canonical comma-joined form stored on vertices,
// e.g. "athena,redshift".
func (ps ProvenanceSet) String() string {
	return strings.Join(ps.Sorted(), ",")
}

// Shared reports whether more than one real source claimed the node.
func (ps ProvenanceSet) Shared() bool {
	return len(ps) > 1 && !ps[UnknownSource]
}

// SourceOnly reports whether exactly the given source claimed the node.
func (ps ProvenanceSet) SourceOnly(tag string) bool {
	return len(ps) == 1 && ps[tag]
}

// EdgeType classifies an edge by endpoint provenance: cross_system iff the two
// provenance sets differ (set inequality, not subset).
func EdgeType(parent, child ProvenanceSet) string {
	if parent.Equal(child) {
		return EdgeTypeSameSystem
	}
	return EdgeTypeCrossSystem
}

// MergedGraph is the provenance-tagged union of all source adjacency maps.
// It is built once per run and read-only during the write phase.
type MergedGraph struct {
	// Nodes holds every node id in deterministic insertion order; every id
	// referenced as a child also appears here (closure invariant).
	Nodes []string
	// Children maps node id to its ordered, duplicate-free child ids. Leaf
	// nodes map to an empty slice.
	Children map[string][]string
	// Sources maps node id to its non-empty provenance set.
	Sources map[string]ProvenanceSet
	// Attrs holds merged scalar attributes per node; on overlap the later
	// source wins.
	Attrs map[string]map[string]string
}

// SourceType returns the canonical provenance string for a node, falling back
// to UnknownSource for ids the graph does not know.
func (g *MergedGraph) SourceType(id string) string {
	if ps, ok := g.Sources[id]; ok && len(ps) > 0 {
		return ps.String()
	}
	return UnknownSource
}

// EdgeCount returns the number of (parent, child) pairs in the graph.
func (g *MergedGraph) EdgeCount() int {
	n := 0
	for _, children := range g.Children {
		n += len(children)
	}
	return n
}
