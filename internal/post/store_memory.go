package post

import (
	"context"
	"sync"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded post projection for tests and local wiring.
type InMemory struct {
	mu    sync.RWMutex
	posts map[id.PostID]*Info
}

func NewInMemory() *InMemory {
	return &InMemory{posts: make(map[id.PostID]*Info)}
}

// Seed inserts or replaces a post projection.
func (s *InMemory) Seed(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := info
	s.posts[info.ID] = &copied
}

func (s *InMemory) GetAuthorAndStatus(_ context.Context, postID id.PostID) (*Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.posts[postID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *info
	return &copied, nil
}
