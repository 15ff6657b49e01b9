package service

import "sync"

// InflightSet is the advisory single-flight coordinator keyed by sid,
// scoped to one worker process. It stops a second refresh or translation
// job for the same sid from running concurrently here; across processes
// the idempotent cache makes duplicate work harmless.
type InflightSet struct {
	mu   sync.Mutex
	sids map[string]struct{}
}

func NewInflightSet() *InflightSet {
	return &InflightSet{sids: make(map[string]struct{})}
}

// TryAcquire inserts sid and reports whether it was absent.
func (s *InflightSet) TryAcquire(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sids[sid]; ok {
		return false
	}
	s.sids[sid] = struct{}{}
	return true
}

func (s *InflightSet) Release(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sids, sid)
}
