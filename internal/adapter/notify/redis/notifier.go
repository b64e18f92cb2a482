package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/bnema/tribora/internal/port"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "tribora:jobs"

type Config struct {
	Addr     string
	DB       int
	Password string
}

// Notifier fans job-enqueued signals out to every worker process over
// Redis pub/sub. Signals carry no data; a woken worker polls the queue.
type Notifier struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func New(ctx context.Context, client *redis.Client, channel string) (*Notifier, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	n := &Notifier{
		client:  client,
		pubsub:  pubsub,
		channel: channel,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go n.forward(pubsub.Channel())
	logger.Info.Printf("redis notifier subscribed to %s", channel)
	return n, nil
}

func (n *Notifier) Notify(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, "1").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", n.channel, err)
	}
	return nil
}

func (n *Notifier) Wake() <-chan struct{} {
	return n.wake
}

func (n *Notifier) Close() error {
	var err error
	n.once.Do(func() {
		close(n.done)
		err = n.pubsub.Close()
	})
	return err
}

// forward coalesces incoming messages into the single-slot wake channel.
func (n *Notifier) forward(msgs <-chan *redis.Message) {
	for {
		select {
		case <-n.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case n.wake <- struct{}{}:
			default:
			}
		}
	}
}

var _ port.Notifier = (*Notifier)(nil)
