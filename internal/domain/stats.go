package domain

import "time"

// RunStats aggregates one synchronization run. It is always reported at
// completion, partial failures included.
type RunStats struct {
	TotalNodes   int            `json:"total_nodes"`
	SourceNodes  map[string]int `json:"source_nodes"`
	SharedNodes  int            `json:"shared_nodes"`
	EdgesCreated int            `json:"edges_created"`
	Retries      int            `json:"retries"`
	Failures     int            `json:"failures"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      time.Time      `json:"ended_at"`
}

func (s *RunStats) Elapsed() time.Duration {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// EdgesPerSecond is the write throughput over the whole run; zero when the
// run had no measurable duration.
func (s *RunStats) EdgesPerSecond() float64 {
	elapsed := s.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.EdgesCreated) / elapsed
}
