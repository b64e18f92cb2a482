package service

import (
	"sync"
	"time"
)

// AllContent subscribes to events of every record.
const AllContent = "*"

const (
	EventStatus = "status"
	EventStage  = "stage"
	EventFailed = "failed"
)

type Event struct {
	Type      string
	ContentID string
	Status    string
	Stage     string
	Message   string
	At        time.Time
}

type EventPublisher interface {
	Publish(event Event)
}

// EventBus delivers pipeline events to live subscribers. Slow subscribers
// miss events rather than block the pipeline.
type EventBus struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

func (eb *EventBus) Subscribe(contentID string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[contentID] = append(eb.subscribers[contentID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(contentID string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[contentID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[contentID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[contentID]) == 0 {
		delete(eb.subscribers, contentID)
	}
}

func (eb *EventBus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	deliver := func(subs []chan Event) {
		for _, ch := range subs {
			select {
			case ch <- event:
			default:
			}
		}
	}
	deliver(eb.subscribers[event.ContentID])
	if event.ContentID != AllContent {
		deliver(eb.subscribers[AllContent])
	}
}
