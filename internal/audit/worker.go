package audit

import "context"

// Worker consumes audit events from a channel and persists them. It decouples
// request latency from sink latency; cmd/server runs it alongside the HTTP
// server in an errgroup.
type Worker struct {
	store Store
	inbox <-chan Event
}

func NewWorker(store Store, inbox <-chan Event) *Worker {
	return &Worker{store: store, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}

// ChannelStore adapts a channel to the Store interface so services can emit
// without blocking on the sink. Events are dropped when the inbox is full;
// the audit trail is best-effort by contract, decisions themselves are
// persisted in the ledgers.
type ChannelStore struct {
	inbox chan<- Event
}

func NewChannelStore(inbox chan<- Event) *ChannelStore {
	return &ChannelStore{inbox: inbox}
}

func (s *ChannelStore) Append(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
	default:
	}
	return nil
}
