package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/lineagesync/internal/data/graph"
	"github.com/yungbote/lineagesync/internal/domain"
	"github.com/yungbote/lineagesync/internal/lineage"
	"github.com/yungbote/lineagesync/internal/platform/logger"
)

type SyncConfig struct {
	// BatchSize nodes are written per wave; Concurrency bounds workers
	// inside a wave; BatchPause separates waves so the store's optimistic
	// concurrency conflicts drain before the next one.
	BatchSize   int
	Concurrency int
	BatchPause  time.Duration
}

func (c *SyncConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.BatchPause <= 0 {
		c.BatchPause = 300 * time.Millisecond
	}
}

// SyncService replicates a merged lineage graph into the remote store:
// destructive clear, batched bounded-concurrency upserts, then one recovery
// pass over recorded failures.
type SyncService struct {
	log   *logger.Logger
	store graph.Store
	cfg   SyncConfig
}

func NewSyncService(store graph.Store, log *logger.Logger, cfg SyncConfig) (*SyncService, error) {
	if store == nil {
		return nil, fmt.Errorf("services: graph store required")
	}
	if log == nil {
		return nil, fmt.Errorf("services: logger required")
	}
	cfg.applyDefaults()
	return &SyncService{
		log:   log.With("service", "SyncService"),
		store: store,
		cfg:   cfg,
	}, nil
}

type retryCounter interface {
	RetryCount() int64
}

// Run executes one full-refresh synchronization. The returned error is
// non-nil only for fatal conditions (failed clear, cancellation); per-unit
// write failures are recorded, replayed once, and surfaced through the stats
// and the returned unresolved operations.
func (s *SyncService) Run(ctx context.Context, g *domain.MergedGraph) (*domain.RunStats, []domain.PendingOperation, error) {
	if g == nil {
		return nil, nil, fmt.Errorf("services: merged graph required")
	}

	runID := uuid.New().String()
	log := s.log.With("run_id", runID)

	sourceOnly, shared := lineage.Classification(g)
	stats := &domain.RunStats{
		TotalNodes:  len(g.Nodes),
		SourceNodes: sourceOnly,
		SharedNodes: shared,
		StartedAt:   time.Now().UTC(),
	}

	log.Info("Starting graph synchronization",
		"total_nodes", stats.TotalNodes,
		"total_edges", g.EdgeCount(),
		"batch_size", s.cfg.BatchSize,
		"concurrency", s.cfg.Concurrency,
	)

	// The clear is a hard barrier: writing into an unknown pre-existing
	// graph would make the run's counts meaningless, so a failed clear
	// aborts before any writes.
	if err := s.store.Clear(ctx); err != nil {
		return nil, nil, fmt.Errorf("services: initial clear failed, aborting run: %w", err)
	}

	sess := newSyncSession()
	totalBatches := (len(g.Nodes) + s.cfg.BatchSize - 1) / s.cfg.BatchSize

	for batchIdx := 0; batchIdx*s.cfg.BatchSize < len(g.Nodes); batchIdx++ {
		if ctx.Err() != nil {
			log.Warn("Run cancelled, skipping remaining batches",
				"completed_batches", batchIdx, "total_batches", totalBatches)
			break
		}

		start := batchIdx * s.cfg.BatchSize
		end := start + s.cfg.BatchSize
		if end > len(g.Nodes) {
			end = len(g.Nodes)
		}
		batch := g.Nodes[start:end]

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(s.cfg.Concurrency)
		for _, node := range batch {
			node := node
			eg.Go(func() error {
				s.processNode(egCtx, sess, g, node)
				return nil
			})
		}
		_ = eg.Wait()

		log.Info("Batch complete",
			"processed", end,
			"total", len(g.Nodes),
			"batch", batchIdx+1,
			"total_batches", totalBatches,
		)

		if end < len(g.Nodes) && ctx.Err() == nil {
			select {
			case <-time.After(s.cfg.BatchPause):
			case <-ctx.Done():
			}
		}
	}

	var unresolved []domain.PendingOperation
	if ctx.Err() == nil {
		unresolved = s.recoverFailures(ctx, log, sess, g)
	} else {
		unresolved = sess.takeFailed()
	}

	stats.EdgesCreated = sess.edgesCreated()
	stats.Failures = len(unresolved)
	if rc, ok := s.store.(retryCounter); ok {
		stats.Retries = int(rc.RetryCount())
	}
	stats.EndedAt = time.Now().UTC()

	s.logStatistics(log, stats)
	return stats, unresolved, ctx.Err()
}

// processNode writes one node unit: the vertex, then an edge per child. A
// vertex failure defers the whole unit; an edge failure defers just that
// edge.
func (s *SyncService) processNode(ctx context.Context, sess *syncSession, g *domain.MergedGraph, node string) {
	children := g.Children[node]
	parentProv := g.SourceType(node)

	if err := s.upsertVertexOnce(ctx, sess, g, node, parentProv); err != nil {
		s.log.Warn("Vertex upsert failed, deferring node unit",
			"node", node, "error", err)
		sess.recordFailure(domain.NodeRetry{ID: node, Children: append([]string(nil), children...)})
		return
	}

	for _, child := range children {
		childProv := g.SourceType(child)
		if err := s.upsertEdgeUnit(ctx, sess, g, node, child, parentProv, childProv); err != nil {
			s.log.Warn("Edge upsert failed, deferring edge",
				"parent", node, "child", child, "error", err)
			sess.recordFailure(domain.EdgeRetry{
				Parent:     node,
				Child:      child,
				ParentProv: parentProv,
				ChildProv:  childProv,
			})
		}
	}
}

func (s *SyncService) upsertVertexOnce(ctx context.Context, sess *syncSession, g *domain.MergedGraph, id, sourceType string) error {
	if sess.vertexDone(id) {
		return nil
	}
	if err := s.store.UpsertVertex(ctx, id, sourceType, g.Attrs[id]); err != nil {
		return err
	}
	sess.markVertex(id)
	return nil
}

// upsertEdgeUnit re-upserts both endpoint vertices before the edge itself, so
// worker interleaving can never produce an edge against a missing vertex.
func (s *SyncService) upsertEdgeUnit(ctx context.Context, sess *syncSession, g *domain.MergedGraph, parent, child, parentProv, childProv string) error {
	if sess.edgeDone(parent, child) {
		return nil
	}
	if err := s.upsertVertexOnce(ctx, sess, g, parent, parentProv); err != nil {
		return err
	}
	if err := s.upsertVertexOnce(ctx, sess, g, child, childProv); err != nil {
		return err
	}

	edgeType := domain.EdgeType(g.Sources[parent], g.Sources[child])
	if err := s.store.UpsertEdge(ctx, parent, child, parentProv, childProv, edgeType); err != nil {
		return err
	}
	sess.markEdge(parent, child)
	return nil
}

// recoverFailures drains the recovery queue exactly once. Items that fail
// again are returned unresolved and never retried in this run.
func (s *SyncService) recoverFailures(ctx context.Context, log *logger.Logger, sess *syncSession, g *domain.MergedGraph) []domain.PendingOperation {
	pending := sess.takeFailed()
	if len(pending) == 0 {
		return nil
	}

	log.Info("Replaying failed operations", "count", len(pending))

	var still []domain.PendingOperation
	recovered := 0
	for _, op := range pending {
		var err error
		switch op := op.(type) {
		case domain.NodeRetry:
			err = s.replayNode(ctx, sess, g, op)
		case domain.EdgeRetry:
			err = s.upsertEdgeUnit(ctx, sess, g, op.Parent, op.Child, op.ParentProv, op.ChildProv)
		default:
			err = fmt.Errorf("services: unknown pending operation %T", op)
		}
		if err != nil {
			still = append(still, op)
			continue
		}
		recovered++
	}

	log.Info("Recovery pass finished", "recovered", recovered, "unresolved", len(still))
	for i, op := range still {
		if i >= 5 {
			break
		}
		log.Warn("Unresolved after recovery", "operation", fmt.Sprintf("%+v", op))
	}
	return still
}

func (s *SyncService) replayNode(ctx context.Context, sess *syncSession, g *domain.MergedGraph, op domain.NodeRetry) error {
	parentProv := g.SourceType(op.ID)
	if err := s.upsertVertexOnce(ctx, sess, g, op.ID, parentProv); err != nil {
		return err
	}
	for _, child := range op.Children {
		childProv := g.SourceType(child)
		if err := s.upsertEdgeUnit(ctx, sess, g, op.ID, child, parentProv, childProv); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) logStatistics(log *logger.Logger, stats *domain.RunStats) {
	log.Info("Synchronization statistics",
		"total_nodes", stats.TotalNodes,
		"source_nodes", stats.SourceNodes,
		"shared_nodes", stats.SharedNodes,
		"edges_created", stats.EdgesCreated,
		"retries", stats.Retries,
		"failures", stats.Failures,
		"elapsed", stats.Elapsed().String(),
		"edges_per_second", fmt.Sprintf("%.1f", stats.EdgesPerSecond()),
	)
}
