package lineage

import (
	"fmt"
	"sort"

	"github.com/yungbote/lineagesync/internal/domain"
	"github.com/yungbote/lineagesync/internal/manifest"
	"github.com/yungbote/lineagesync/internal/platform/logger"
)

// Merger folds per-source adjacency maps into one provenance-tagged graph.
// Provenance union is commutative across source order; child-list order is
// first-source-wins and deterministic for a fixed source order.
type Merger struct {
	log *logger.Logger
}

func NewMerger(log *logger.Logger) *Merger {
	return &Merger{log: log.With("service", "LineageMerger")}
}

func (m *Merger) Merge(sources []manifest.Source) (*domain.MergedGraph, []manifest.ColumnFlow, error) {
	if len(sources) < 2 {
		return nil, nil, fmt.Errorf("lineage: merge needs at least two sources, got %d", len(sources))
	}

	g := &domain.MergedGraph{
		Children: make(map[string][]string),
		Sources:  make(map[string]domain.ProvenanceSet),
		Attrs:    make(map[string]map[string]string),
	}

	seen := make(map[string]bool)
	track := func(id string) {
		if !seen[id] {
			seen[id] = true
			g.Nodes = append(g.Nodes, id)
		}
	}

	var columnFlows []manifest.ColumnFlow
	flowSeen := make(map[string]bool)

	for _, src := range sources {
		// Go map iteration is randomized; sort parents so the merged child
		// order is reproducible for a fixed source order.
		parents := make([]string, 0, len(src.Lineage))
		for parent := range src.Lineage {
			parents = append(parents, parent)
		}
		sort.Strings(parents)

		for _, parent := range parents {
			track(parent)
			if _, ok := g.Children[parent]; !ok {
				g.Children[parent] = []string{}
			}
			if _, ok := g.Sources[parent]; !ok {
				g.Sources[parent] = domain.NewProvenanceSet()
			}
			g.Sources[parent].Add(src.Tag)

			for _, child := range src.Lineage[parent] {
				if !containsChild(g.Children[parent], child) {
					g.Children[parent] = append(g.Children[parent], child)
				}
				track(child)
				if _, ok := g.Sources[child]; !ok {
					g.Sources[child] = domain.NewProvenanceSet()
				}
				g.Sources[child].Add(src.Tag)
			}
		}

		mergeAttrs(g, src)

		for _, flow := range src.ColumnFlows {
			key := flow.SourceDataset + "." + flow.SourceColumn + "->" + flow.TargetDataset + "." + flow.TargetColumn
			if flowSeen[key] {
				continue
			}
			flowSeen[key] = true
			columnFlows = append(columnFlows, flow)
		}
	}

	// Close the graph: ids referenced only as children become leaf entries.
	for _, id := range g.Nodes {
		if _, ok := g.Children[id]; !ok {
			g.Children[id] = []string{}
		}
		if ps, ok := g.Sources[id]; !ok || len(ps) == 0 {
			g.Sources[id] = domain.NewProvenanceSet(domain.UnknownSource)
		}
	}

	sourceOnly, shared := Classification(g)
	m.log.Info("Merged lineage sources",
		"sources", len(sources),
		"total_nodes", len(g.Nodes),
		"total_edges", g.EdgeCount(),
		"source_only", sourceOnly,
		"shared", shared,
		"column_flows", len(columnFlows),
	)

	return g, columnFlows, nil
}

// Classification buckets nodes into source-only counts and a shared count;
// unknown-provenance nodes land in neither bucket.
func Classification(g *domain.MergedGraph) (map[string]int, int) {
	sourceOnly := make(map[string]int)
	shared := 0
	for _, id := range g.Nodes {
		ps := g.Sources[id]
		switch {
		case ps.Shared():
			shared++
		case len(ps) == 1 && !ps.Has(domain.UnknownSource):
			for tag := range ps {
				sourceOnly[tag]++
			}
		}
	}
	return sourceOnly, shared
}

func containsChild(children []string, child string) bool {
	for _, c := range children {
		if c == child {
			return true
		}
	}
	return false
}

func mergeAttrs(g *domain.MergedGraph, src manifest.Source) {
	if len(src.Attrs) == 0 {
		return
	}
	ids := make([]string, 0, len(src.Attrs))
	for id := range src.Attrs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		existing, ok := g.Attrs[id]
		if !ok {
			existing = make(map[string]string, len(src.Attrs[id]))
			g.Attrs[id] = existing
		}
		// Later source wins on overlapping keys.
		for k, v := range src.Attrs[id] {
			existing[k] = v
		}
	}
}
