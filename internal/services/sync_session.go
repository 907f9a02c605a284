package services

import (
	"sync"

	"github.com/yungbote/lineagesync/internal/domain"
)

// syncSession owns the mutable state shared by concurrent workers of one
// run: already-written vertex/edge keys and recorded failures. Everything
// behind the mutex; the session never outlives its run.
type syncSession struct {
	mu           sync.Mutex
	vertices     map[string]bool
	edges        map[string]bool
	failed       []domain.PendingOperation
	createdEdges int
}

func newSyncSession() *syncSession {
	return &syncSession{
		vertices: make(map[string]bool),
		edges:    make(map[string]bool),
	}
}

func (s *syncSession) vertexDone(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vertices[id]
}

func (s *syncSession) markVertex(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vertices[id] = true
}

func (s *syncSession) edgeDone(parent, child string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges[edgeKey(parent, child)]
}

func (s *syncSession) markEdge(parent, child string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey(parent, child)
	if !s.edges[key] {
		s.edges[key] = true
		s.createdEdges++
	}
}

func (s *syncSession) edgesCreated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdEdges
}

func (s *syncSession) recordFailure(op domain.PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, op)
}

// takeFailed hands the queue to the recovery pass and empties it, so the
// drain can happen at most once.
func (s *syncSession) takeFailed() []domain.PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.failed
	s.failed = nil
	return out
}

func edgeKey(parent, child string) string {
	return parent + "->" + child
}
