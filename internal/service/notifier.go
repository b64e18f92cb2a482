package service

import (
	"context"

	"github.com/bnema/tribora/internal/port"
)

// LocalNotifier wakes workers of the same process. It is used when no
// Redis server is configured.
type LocalNotifier struct {
	wake chan struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{wake: make(chan struct{}, 1)}
}

func (n *LocalNotifier) Notify(ctx context.Context) error {
	select {
	case n.wake <- struct{}{}:
	default:
	}
	return nil
}

func (n *LocalNotifier) Wake() <-chan struct{} {
	return n.wake
}

func (n *LocalNotifier) Close() error {
	return nil
}

var _ port.Notifier = (*LocalNotifier)(nil)
