package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/yungbote/lineagesync/internal/data/graph"
	"github.com/yungbote/lineagesync/internal/domain"
	"github.com/yungbote/lineagesync/internal/platform/logger"
)

// VerifyService reads aggregate counts back from the store after a run. It
// is observational: verification failures are logged, never fatal.
type VerifyService struct {
	log   *logger.Logger
	store graph.Store
}

func NewVerifyService(store graph.Store, log *logger.Logger) (*VerifyService, error) {
	if store == nil {
		return nil, fmt.Errorf("services: graph store required")
	}
	if log == nil {
		return nil, fmt.Errorf("services: logger required")
	}
	return &VerifyService{
		log:   log.With("service", "VerifyService"),
		store: store,
	}, nil
}

type VerificationResult struct {
	Vertices         int64
	Edges            int64
	CrossSystemEdges int64
	BySource         map[string]int64
	Samples          []graph.VertexSample
}

// Verify issues the post-write count queries for every source-type string
// present in the merged graph plus the global totals.
func (s *VerifyService) Verify(ctx context.Context, g *domain.MergedGraph) (*VerificationResult, error) {
	result := &VerificationResult{BySource: make(map[string]int64)}

	vertices, err := s.store.CountVertices(ctx)
	if err != nil {
		return nil, fmt.Errorf("services: count vertices: %w", err)
	}
	result.Vertices = vertices

	for _, sourceType := range sourceTypes(g) {
		count, err := s.store.CountVerticesBySource(ctx, sourceType)
		if err != nil {
			s.log.Warn("Source-type count failed", "source_type", sourceType, "error", err)
			continue
		}
		result.BySource[sourceType] = count
	}

	edges, err := s.store.CountEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("services: count edges: %w", err)
	}
	result.Edges = edges

	cross, err := s.store.CountEdgesByType(ctx, domain.EdgeTypeCrossSystem)
	if err != nil {
		s.log.Warn("Cross-system edge count failed", "error", err)
	} else {
		result.CrossSystemEdges = cross
	}

	samples, err := s.store.SampleVertices(ctx, 5)
	if err != nil {
		s.log.Warn("Vertex sampling failed", "error", err)
	} else {
		result.Samples = samples
	}

	s.log.Info("Verification complete",
		"vertices", result.Vertices,
		"edges", result.Edges,
		"cross_system_edges", result.CrossSystemEdges,
		"by_source", result.BySource,
	)
	for _, sample := range result.Samples {
		s.log.Info("Sample vertex", "name", sample.Name, "source", sample.Source)
	}
	return result, nil
}

func sourceTypes(g *domain.MergedGraph) []string {
	seen := make(map[string]bool)
	for _, ps := range g.Sources {
		seen[ps.String()] = true
	}
	out := make([]string, 0, len(seen))
	for st := range seen {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}
