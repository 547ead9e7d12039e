package document

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

// InMemory stores uploads in a map. Test double for the MinIO store; it can
// be told to fail to exercise the UploadFailed path.
type InMemory struct {
	mu      sync.Mutex
	objects map[string]Upload
	failErr error
}

func NewInMemory() *InMemory {
	return &InMemory{objects: make(map[string]Upload)}
}

// FailWith makes every subsequent Upload return err. Pass nil to recover.
func (s *InMemory) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *InMemory) Upload(_ context.Context, doc Upload, ownerID id.UserID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return "", fmt.Errorf("upload document: %w: %w", sentinel.ErrUnavailable, s.failErr)
	}

	url := fmt.Sprintf("mem://documents/%s/%s", ownerID, uuid.NewString())
	s.objects[url] = doc
	return url, nil
}

// Count returns the number of stored documents.
func (s *InMemory) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
