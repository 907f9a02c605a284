package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yungbote/lineagesync/internal/platform/logger"
	"github.com/yungbote/lineagesync/internal/platform/neptune"
)

// NeptuneStore persists the lineage graph through the signed Gremlin HTTPS
// endpoint.
type NeptuneStore struct {
	client *neptune.Client
	log    *logger.Logger
}

func NewNeptuneStore(client *neptune.Client, log *logger.Logger) (*NeptuneStore, error) {
	if client == nil {
		return nil, fmt.Errorf("graph: neptune client required")
	}
	if log == nil {
		return nil, fmt.Errorf("graph: logger required")
	}
	return &NeptuneStore{
		client: client,
		log:    log.With("service", "NeptuneStore"),
	}, nil
}

// RetryCount exposes the client's inline conflict-retry total for run stats.
func (s *NeptuneStore) RetryCount() int64 {
	return s.client.RetryCount()
}

func (s *NeptuneStore) Clear(ctx context.Context) error {
	if _, err := s.client.Execute(ctx, "clear", neptune.DropAllQuery(), 3); err != nil {
		return fmt.Errorf("graph: clear failed: %w", err)
	}
	if count, err := s.CountVertices(ctx); err == nil {
		s.log.Info("Cleared graph store", "remaining_vertices", count)
	}
	return nil
}

func (s *NeptuneStore) UpsertVertex(ctx context.Context, id, sourceType string, attrs map[string]string) error {
	props := []neptune.Property{
		{Name: SourceTypeProp, Value: sourceType},
		{Name: CreatedAtProp, Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	props = append(props, sortedAttrProps(attrs)...)
	return s.client.UpsertVertex(ctx, VertexLabel, VertexKeyProp, id, props)
}

func (s *NeptuneStore) UpsertEdge(ctx context.Context, parent, child, parentSource, childSource, edgeType string) error {
	props := []neptune.Property{
		{Name: EdgeTypeProp, Value: edgeType},
		{Name: ParentSourceProp, Value: parentSource},
		{Name: ChildSourceProp, Value: childSource},
		{Name: CreatedAtProp, Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	return s.client.UpsertEdge(ctx, EdgeLabel, VertexLabel, VertexKeyProp, parent, child, props)
}

func (s *NeptuneStore) CountVertices(ctx context.Context) (int64, error) {
	return s.count(ctx, "count_vertices", neptune.CountVerticesQuery())
}

func (s *NeptuneStore) CountVerticesBySource(ctx context.Context, sourceType string) (int64, error) {
	return s.count(ctx, "count_vertices_by_source", neptune.CountVerticesByQuery(SourceTypeProp, sourceType))
}

func (s *NeptuneStore) CountEdges(ctx context.Context) (int64, error) {
	return s.count(ctx, "count_edges", neptune.CountEdgesQuery())
}

func (s *NeptuneStore) CountEdgesByType(ctx context.Context, edgeType string) (int64, error) {
	return s.count(ctx, "count_edges_by_type", neptune.CountEdgesByQuery(EdgeTypeProp, edgeType))
}

func (s *NeptuneStore) SampleVertices(ctx context.Context, n int) ([]VertexSample, error) {
	resp, err := s.client.Execute(ctx, "sample_vertices",
		neptune.SampleVerticesQuery(n, VertexKeyProp, SourceTypeProp), 3)
	if err != nil {
		return nil, err
	}
	rows := resp.Rows()
	out := make([]VertexSample, 0, len(rows))
	for _, row := range rows {
		out = append(out, VertexSample{Name: row["name"], Source: row["source"]})
	}
	return out, nil
}

func (s *NeptuneStore) count(ctx context.Context, op, query string) (int64, error) {
	resp, err := s.client.Execute(ctx, op, query, 3)
	if err != nil {
		return 0, err
	}
	n, ok := resp.FirstInt()
	if !ok {
		return 0, fmt.Errorf("graph: %s returned no numeric result", op)
	}
	return n, nil
}

func sortedAttrProps(attrs map[string]string) []neptune.Property {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	props := make([]neptune.Property, 0, len(keys))
	for _, k := range keys {
		props = append(props, neptune.Property{Name: k, Value: attrs[k]})
	}
	return props
}
