package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	"vouch/internal/verification/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded verification ledger. The mutex serializes the
// one-active-per-post check with the insert, matching the partial unique
// index the postgres store relies on.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.VerificationID]*models.PostVerification
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.VerificationID]*models.PostVerification)}
}

func (s *InMemory) Create(_ context.Context, record *models.PostVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.PostID == record.PostID && existing.Active {
			return sentinel.ErrConflict
		}
	}

	copied := *record
	s.records[record.ID] = &copied
	return nil
}

func (s *InMemory) FindActiveByPost(_ context.Context, postID id.PostID) (*models.PostVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.PostID == postID && record.Active {
			copied := *record
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ExistsActiveByPost(_ context.Context, postID id.PostID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.PostID == postID && record.Active {
			return true, nil
		}
	}
	return false, nil
}

// Deactivate flips the active record for postID to inactive, but only when it
// was created by verifierID. Check and flip happen under one lock so a
// concurrent retraction cannot double-apply.
func (s *InMemory) Deactivate(_ context.Context, postID id.PostID, verifierID id.UserID, _ time.Time) (*models.PostVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.PostID == postID && record.Active && record.VerifiedBy == verifierID {
			record.Active = false
			copied := *record
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByPost(_ context.Context, postID id.PostID) ([]*models.PostVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.PostVerification
	for _, record := range s.records {
		if record.PostID == postID {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VerifiedAt.After(out[j].VerifiedAt)
	})
	return out, nil
}

// Snapshot implements tx.Snapshotter.
func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[id.VerificationID]*models.PostVerification, len(s.records))
	for key, record := range s.records {
		copied := *record
		snapshot[key] = &copied
	}
	return snapshot
}

// Restore implements tx.Snapshotter.
func (s *InMemory) Restore(snapshot any) {
	records, ok := snapshot.(map[id.VerificationID]*models.PostVerification)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}
