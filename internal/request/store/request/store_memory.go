package request

import (
	"context"
	"sort"
	"sync"

	"vouch/internal/request/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded request ledger. The mutex serializes the
// active-request uniqueness check with the insert, giving the same guarantee
// the partial unique index gives the postgres store.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.InstitutionRequest
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.RequestID]*models.InstitutionRequest)}
}

func (s *InMemory) Create(_ context.Context, req *models.InstitutionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.RequesterID == req.RequesterID && existing.Active() {
			return sentinel.ErrConflict
		}
	}

	copied := *req
	s.requests[req.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.RequestID) (*models.InstitutionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *InMemory) ListByRequester(_ context.Context, requesterID id.UserID) ([]*models.InstitutionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.InstitutionRequest
	for _, req := range s.requests {
		if req.RequesterID == requesterID {
			copied := *req
			out = append(out, &copied)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) List(_ context.Context, status *models.Status) ([]*models.InstitutionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.InstitutionRequest
	for _, req := range s.requests {
		if status != nil && req.Status != *status {
			continue
		}
		copied := *req
		out = append(out, &copied)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemory) CountByStatus(_ context.Context, status models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, req := range s.requests {
		if req.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) HasActive(_ context.Context, requesterID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.requests {
		if req.RequesterID == requesterID && req.Active() {
			return true, nil
		}
	}
	return false, nil
}

// Execute atomically validates and mutates one request while holding the
// store lock, so no concurrent transition can interleave between the check
// and the write. Returns the mutated request.
func (s *InMemory) Execute(_ context.Context, requestID id.RequestID,
	validate func(*models.InstitutionRequest) error,
	mutate func(*models.InstitutionRequest),
) (*models.InstitutionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := *req
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	s.requests[requestID] = &working

	copied := working
	return &copied, nil
}

// Snapshot implements tx.Snapshotter.
func (s *InMemory) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[id.RequestID]*models.InstitutionRequest, len(s.requests))
	for key, req := range s.requests {
		copied := *req
		snapshot[key] = &copied
	}
	return snapshot
}

// Restore implements tx.Snapshotter.
func (s *InMemory) Restore(snapshot any) {
	requests, ok := snapshot.(map[id.RequestID]*models.InstitutionRequest)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = requests
}

func sortNewestFirst(requests []*models.InstitutionRequest) {
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}
