package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/lineagesync/internal/platform/logger"
	"github.com/yungbote/lineagesync/internal/platform/neo4jdb"
)

// Neo4jStore mirrors the Neptune semantics against a local Neo4j over bolt,
// for development without an AWS endpoint. MERGE gives the same
// create-if-absent upsert guarantee the Gremlin coalesce pattern does.
type Neo4jStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewNeo4jStore(client *neo4jdb.Client, log *logger.Logger) (*Neo4jStore, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("graph: neo4j client required")
	}
	if log == nil {
		return nil, fmt.Errorf("graph: logger required")
	}
	return &Neo4jStore{
		client: client,
		log:    log.With("service", "Neo4jStore"),
	}, nil
}

func (s *Neo4jStore) Clear(ctx context.Context) error {
	return s.write(ctx, `MATCH (n:LineageNode) DETACH DELETE n`, nil)
}

func (s *Neo4jStore) UpsertVertex(ctx context.Context, id, sourceType string, attrs map[string]string) error {
	params := map[string]any{
		"node_name":   id,
		"source_type": sourceType,
		"created_at":  time.Now().UTC().Format(time.RFC3339Nano),
		"attrs":       attrsParam(attrs),
	}
	return s.write(ctx, `
MERGE (n:LineageNode {node_name: $node_name})
ON CREATE SET n.source_type = $source_type,
              n.created_timestamp = $created_at
SET n += $attrs
`, params)
}

func (s *Neo4jStore) UpsertEdge(ctx context.Context, parent, child, parentSource, childSource, edgeType string) error {
	params := map[string]any{
		"parent":        parent,
		"child":         child,
		"parent_source": parentSource,
		"child_source":  childSource,
		"edge_type":     edgeType,
		"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	return s.write(ctx, `
MATCH (a:LineageNode {node_name: $parent})
MATCH (b:LineageNode {node_name: $child})
MERGE (a)-[e:DATA_FLOW]->(b)
ON CREATE SET e.edge_type = $edge_type,
              e.parent_source = $parent_source,
              e.child_source = $child_source,
              e.created_timestamp = $created_at
`, params)
}

func (s *Neo4jStore) CountVertices(ctx context.Context) (int64, error) {
	return s.count(ctx, `MATCH (n:LineageNode) RETURN count(n)`, nil)
}

func (s *Neo4jStore) CountVerticesBySource(ctx context.Context, sourceType string) (int64, error) {
	return s.count(ctx, `MATCH (n:LineageNode {source_type: $source_type}) RETURN count(n)`,
		map[string]any{"source_type": sourceType})
}

func (s *Neo4jStore) CountEdges(ctx context.Context) (int64, error) {
	return s.count(ctx, `MATCH (:LineageNode)-[e:DATA_FLOW]->(:LineageNode) RETURN count(e)`, nil)
}

func (s *Neo4jStore) CountEdgesByType(ctx context.Context, edgeType string) (int64, error) {
	return s.count(ctx, `MATCH (:LineageNode)-[e:DATA_FLOW {edge_type: $edge_type}]->(:LineageNode) RETURN count(e)`,
		map[string]any{"edge_type": edgeType})
}

func (s *Neo4jStore) SampleVertices(ctx context.Context, n int) ([]VertexSample, error) {
	if n <= 0 {
		n = 5
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]VertexSample, error) {
		res, err := tx.Run(ctx,
			`MATCH (n:LineageNode) RETURN n.node_name AS name, n.source_type AS source LIMIT $limit`,
			map[string]any{"limit": n})
		if err != nil {
			return nil, err
		}
		var out []VertexSample
		for res.Next(ctx) {
			rec := res.Record()
			name, _ := rec.Get("name")
			source, _ := rec.Get("source")
			out = append(out, VertexSample{
				Name:   asStr(name),
				Source: asStr(source),
			})
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graph: sample vertices: %w", err)
	}
	return records, nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
}

func (s *Neo4jStore) write(ctx context.Context, query string, params map[string]any) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: neo4j write: %w", err)
	}
	return nil
}

func (s *Neo4jStore) count(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	count, err := neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (int64, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return 0, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return 0, err
		}
		n, ok := rec.Values[0].(int64)
		if !ok {
			return 0, fmt.Errorf("unexpected count type %T", rec.Values[0])
		}
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("graph: neo4j count: %w", err)
	}
	return count, nil
}

func asStr(v any) string {
	s, _ := v.(string)
	return s
}

func attrsParam(attrs map[string]string) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
