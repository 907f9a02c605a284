package graph

import "context"

const (
	// VertexLabel is the single vertex label lineage nodes are stored under;
	// VertexKeyProp is the uniqueness key for upserts.
	VertexLabel    = "lineage_node"
	VertexKeyProp  = "node_name"
	SourceTypeProp = "source_type"
	CreatedAtProp  = "created_timestamp"

	EdgeLabel        = "data_flow"
	EdgeTypeProp     = "edge_type"
	ParentSourceProp = "parent_source"
	ChildSourceProp  = "child_source"
)

// VertexSample is one row of the verification projection.
type VertexSample struct {
	Name   string
	Source string
}

// Store is the mutation and verification surface of the remote graph
// database. All writes are upserts: create-if-absent keyed by a uniqueness
// constraint, otherwise a no-op, so any interleaving of concurrent workers
// converges to the same stored graph.
type Store interface {
	// Clear destroys the whole remote graph. It runs before any writes of a
	// full-refresh run and its failure is fatal.
	Clear(ctx context.Context) error
	UpsertVertex(ctx context.Context, id, sourceType string, attrs map[string]string) error
	UpsertEdge(ctx context.Context, parent, child, parentSource, childSource, edgeType string) error
	CountVertices(ctx context.Context) (int64, error)
	CountVerticesBySource(ctx context.Context, sourceType string) (int64, error)
	CountEdges(ctx context.Context) (int64, error)
	CountEdgesByType(ctx context.Context, edgeType string) (int64, error)
	SampleVertices(ctx context.Context, n int) ([]VertexSample, error)
}
