// Package events fans chat stream updates out to live subscribers.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

const subscriberBuffer = 16

const (
	TypeSnapshot = "snapshot"
	TypeDone     = "done"
)

// ChatEvent is one update to a chat. Part is the stream event that caused it
// and Snapshot the rendered message after applying it.
type ChatEvent struct {
	ChatID    string          `json:"chatId"`
	MessageID string          `json:"messageId"`
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Ts        string          `json:"ts"`
	Part      json.RawMessage `json:"part,omitempty"`
	Snapshot  any             `json:"snapshot,omitempty"`
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan ChatEvent]struct{}
	seq         map[string]int64
	now         func() time.Time
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan ChatEvent]struct{}{},
		seq:         map[string]int64{},
		now:         time.Now,
	}
}

func (b *Broker) Subscribe(ctx context.Context, chatID string) <-chan ChatEvent {
	ch := make(chan ChatEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subscribers[chatID] == nil {
		b.subscribers[chatID] = map[chan ChatEvent]struct{}{}
	}
	b.subscribers[chatID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[chatID] != nil {
			delete(b.subscribers[chatID], ch)
			if len(b.subscribers[chatID]) == 0 {
				delete(b.subscribers, chatID)
				delete(b.seq, chatID)
			}
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish stamps the event with the chat's next sequence number and delivers
// it without blocking. A subscriber whose buffer is full loses its oldest
// pending event, so it always receives the latest snapshot.
func (b *Broker) Publish(event ChatEvent) ChatEvent {
	event.Type = NormalizeType(event.Type)

	b.mu.Lock()
	b.seq[event.ChatID]++
	event.Seq = b.seq[event.ChatID]
	if event.Ts == "" {
		event.Ts = b.now().UTC().Format(time.RFC3339Nano)
	}
	for ch := range b.subscribers[event.ChatID] {
		deliver(ch, event)
	}
	b.mu.Unlock()
	return event
}

// Forget drops the chat's sequence counter unless someone is still
// subscribed to it.
func (b *Broker) Forget(chatID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subscribers[chatID]) == 0 {
		delete(b.seq, chatID)
	}
}

func deliver(ch chan ChatEvent, event ChatEvent) {
	select {
	case ch <- event:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}
