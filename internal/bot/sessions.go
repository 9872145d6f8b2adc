package bot

import "sync"

// sessions keeps per-user settings in memory only. Nothing here is persisted.
type sessions struct {
	mu         sync.RWMutex
	credential map[int64]string
	strategy   map[int64]string
}

func newSessions() *sessions {
	return &sessions{
		credential: make(map[int64]string),
		strategy:   make(map[int64]string),
	}
}

func (s *sessions) setCredential(userID int64, credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credential[userID] = credential
}

func (s *sessions) forget(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.credential[userID]
	delete(s.credential, userID)
	delete(s.strategy, userID)

	return ok
}

func (s *sessions) getCredential(userID int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credential[userID]
}

func (s *sessions) setStrategy(userID int64, strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strategy[userID] = strategy
}

func (s *sessions) getStrategy(userID int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.strategy[userID]
}
