package domain

// PendingOperation is a replayable record of a failed write unit. It carries
// only ids and provenance strings, never the original error, so a recovery
// pass can re-issue the write through the normal client path.
//
// The interface is sealed: NodeRetry and EdgeRetry are the only variants, and
// consumers are expected to switch exhaustively over them.
type PendingOperation interface {
	pendingOperation()
}

// NodeRetry replays a whole node unit: the vertex itself plus every edge to
// its children.
type NodeRetry struct {
	ID       string
	Children []string
}

// EdgeRetry replays a single parent→child edge with the provenance strings
// both endpoints carried at failure time.
type EdgeRetry struct {
	Parent     string
	Child      string
	ParentProv string
	ChildProv  string
}

func (NodeRetry) pendingOperation() {}
func (EdgeRetry) pendingOperation() {}
