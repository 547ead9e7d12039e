//go:build integration

package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vouch/internal/verification/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/testutil/containers"
)

func seedPost(t *testing.T, pg *containers.PostgresContainer) id.PostID {
	t.Helper()
	author := id.NewUserID()
	_, err := pg.DB.Exec(`INSERT INTO users (id, role) VALUES ($1, 'NORMAL')`, uuid.UUID(author))
	require.NoError(t, err)

	postID := id.NewPostID()
	_, err = pg.DB.Exec(`INSERT INTO post (id, author_id, status) VALUES ($1, $2, 'ACTIVE')`,
		uuid.UUID(postID), uuid.UUID(author))
	require.NoError(t, err)
	return postID
}

func seedVerifier(t *testing.T, pg *containers.PostgresContainer) id.UserID {
	t.Helper()
	verifier := id.NewUserID()
	_, err := pg.DB.Exec(`INSERT INTO users (id, role) VALUES ($1, 'INSTITUTION')`, uuid.UUID(verifier))
	require.NoError(t, err)
	return verifier
}

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "../../../../migrations")
	store := NewPostgres(pg.DB)
	ctx := context.Background()

	reset := func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "post_verification", "post", "users"))
	}

	t.Run("partial index rejects second active verification", func(t *testing.T) {
		reset(t)
		postID := seedPost(t, pg)

		first := mustVerification(t, postID, seedVerifier(t, pg), time.Now().UTC())
		require.NoError(t, store.Create(ctx, first))

		second := mustVerification(t, postID, seedVerifier(t, pg), time.Now().UTC())
		assert.ErrorIs(t, store.Create(ctx, second), sentinel.ErrConflict)
	})

	t.Run("concurrent creates resolve to one winner", func(t *testing.T) {
		reset(t)
		postID := seedPost(t, pg)

		const attempts = 8
		verifiers := make([]id.UserID, attempts)
		for i := range verifiers {
			verifiers[i] = seedVerifier(t, pg)
		}

		records := make([]*models.PostVerification, attempts)
		for i := range records {
			records[i] = mustVerification(t, postID, verifiers[i], time.Now().UTC())
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
	})

	t.Run("deactivate matches post, verifier and active state", func(t *testing.T) {
		reset(t)
		postID := seedPost(t, pg)
		verifier := seedVerifier(t, pg)

		record := mustVerification(t, postID, verifier, time.Now().UTC())
		require.NoError(t, store.Create(ctx, record))

		_, err := store.Deactivate(ctx, postID, seedVerifier(t, pg), time.Now().UTC())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		deactivated, err := store.Deactivate(ctx, postID, verifier, time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, deactivated.Active)

		_, err = store.Deactivate(ctx, postID, verifier, time.Now().UTC())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		exists, err := store.ExistsActiveByPost(ctx, postID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("history survives retraction", func(t *testing.T) {
		reset(t)
		postID := seedPost(t, pg)
		verifier := seedVerifier(t, pg)

		record := mustVerification(t, postID, verifier, time.Now().UTC())
		require.NoError(t, store.Create(ctx, record))
		_, err := store.Deactivate(ctx, postID, verifier, time.Now().UTC())
		require.NoError(t, err)

		replacement := mustVerification(t, postID, seedVerifier(t, pg), time.Now().UTC().Add(time.Second))
		require.NoError(t, store.Create(ctx, replacement))

		history, err := store.ListByPost(ctx, postID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, replacement.ID, history[0].ID)

		active, err := store.FindActiveByPost(ctx, postID)
		require.NoError(t, err)
		assert.Equal(t, replacement.ID, active.ID)
	})
}
