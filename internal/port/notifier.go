package port

import "context"

// Notifier wakes idle workers after an enqueue.
type Notifier interface {
	Notify(ctx context.Context) error
	Wake() <-chan struct{}
	Close() error
}
