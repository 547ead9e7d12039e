package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vouch/pkg/domain"
)

func TestWorkerDrainsInbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := NewMemoryStore()
	inbox := make(chan Event, 8)
	worker := NewWorker(sink, inbox)

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	publisher := NewPublisher(NewChannelStore(inbox))
	require.NoError(t, publisher.Emit(ctx, Event{
		Action:  ActionPostVerified,
		ActorID: id.NewUserID(),
		Subject: id.NewPostID().String(),
	}))

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 1
	}, time.Second, 10*time.Millisecond)

	event := sink.Events()[0]
	assert.Equal(t, ActionPostVerified, event.Action)
	assert.False(t, event.Timestamp.IsZero(), "publisher stamps the timestamp")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestChannelStoreDropsWhenFull(t *testing.T) {
	inbox := make(chan Event, 1)
	store := NewChannelStore(inbox)

	require.NoError(t, store.Append(context.Background(), Event{Action: ActionRequestSubmitted}))
	// Inbox is full; the second append must not block.
	require.NoError(t, store.Append(context.Background(), Event{Action: ActionRequestSubmitted}))
	assert.Len(t, inbox, 1)
}
