package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vouch/internal/verification/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
)

func mustVerification(t *testing.T, postID id.PostID, verifier id.UserID, at time.Time) *models.PostVerification {
	t.Helper()
	record, err := models.NewPostVerification(id.NewVerificationID(), postID, verifier, at)
	require.NoError(t, err)
	return record
}

func TestInMemoryCreateOneActivePerPost(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	postID := id.NewPostID()

	first := mustVerification(t, postID, id.NewUserID(), time.Now())
	require.NoError(t, store.Create(ctx, first))

	t.Run("second active record conflicts", func(t *testing.T) {
		second := mustVerification(t, postID, id.NewUserID(), time.Now())
		assert.ErrorIs(t, store.Create(ctx, second), sentinel.ErrConflict)
	})

	t.Run("other posts unaffected", func(t *testing.T) {
		other := mustVerification(t, id.NewPostID(), id.NewUserID(), time.Now())
		assert.NoError(t, store.Create(ctx, other))
	})

	t.Run("deactivated record frees the post", func(t *testing.T) {
		_, err := store.Deactivate(ctx, postID, first.VerifiedBy, time.Now())
		require.NoError(t, err)

		replacement := mustVerification(t, postID, id.NewUserID(), time.Now())
		assert.NoError(t, store.Create(ctx, replacement))
	})
}

// Many institutions race Verify on the same post; exactly one insert wins.
func TestInMemoryCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	postID := id.NewPostID()

	const attempts = 16
	records := make([]*models.PostVerification, attempts)
	for i := range records {
		records[i] = mustVerification(t, postID, id.NewUserID(), time.Now())
	}

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		record := records[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Create(ctx, record)
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
		} else {
			require.ErrorIs(t, err, sentinel.ErrConflict)
		}
	}
	assert.Equal(t, 1, created)
}

func TestInMemoryDeactivate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	postID := id.NewPostID()
	verifier := id.NewUserID()

	record := mustVerification(t, postID, verifier, time.Now())
	require.NoError(t, store.Create(ctx, record))

	t.Run("wrong verifier not found", func(t *testing.T) {
		_, err := store.Deactivate(ctx, postID, id.NewUserID(), time.Now())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("matching verifier deactivates", func(t *testing.T) {
		deactivated, err := store.Deactivate(ctx, postID, verifier, time.Now())
		require.NoError(t, err)
		assert.False(t, deactivated.Active)

		exists, err := store.ExistsActiveByPost(ctx, postID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("second deactivation not found", func(t *testing.T) {
		_, err := store.Deactivate(ctx, postID, verifier, time.Now())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryLookups(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	postID := id.NewPostID()
	verifier := id.NewUserID()

	old := mustVerification(t, postID, verifier, time.Now().Add(-time.Hour))
	require.NoError(t, store.Create(ctx, old))
	_, err := store.Deactivate(ctx, postID, verifier, time.Now())
	require.NoError(t, err)

	current := mustVerification(t, postID, id.NewUserID(), time.Now())
	require.NoError(t, store.Create(ctx, current))

	t.Run("find active returns the live record", func(t *testing.T) {
		found, err := store.FindActiveByPost(ctx, postID)
		require.NoError(t, err)
		assert.Equal(t, current.ID, found.ID)
	})

	t.Run("list returns full history newest first", func(t *testing.T) {
		history, err := store.ListByPost(ctx, postID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, current.ID, history[0].ID)
		assert.Equal(t, old.ID, history[1].ID)
	})

	t.Run("unverified post not found", func(t *testing.T) {
		_, err := store.FindActiveByPost(ctx, id.NewPostID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
