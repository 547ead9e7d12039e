package identity

import (
	"context"
	"sync"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded user store for tests and local wiring.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*User)}
}

// Seed inserts or replaces a user. Test helper; the real store is owned by
// identity management outside this subsystem.
func (s *InMemory) Seed(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.users[user.ID] = &u
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *InMemory) SetRole(_ context.Context, userID id.UserID, role id.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.Role = role
	return nil
}

// Snapshot implements tx.Snapshotter.
func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[id.UserID]*User, len(s.users))
	for key, user := range s.users {
		copied := *user
		snapshot[key] = &copied
	}
	return snapshot
}

// Restore implements tx.Snapshotter.
func (s *InMemory) Restore(snapshot any) {
	users, ok := snapshot.(map[id.UserID]*User)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
}
