// Package events is the in-process pub/sub the storefront components use to
// react to each other (order placed, session started, ...) without direct
// references.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Topic string

const (
	NewNotification      Topic = "new_notification"
	RefreshNotifications Topic = "refresh_notifications"
	OrderPlaced          Topic = "order_placed"
	OrderAssigned        Topic = "order_assigned"
	SessionStarted       Topic = "session_started"
	SessionEnded         Topic = "session_ended"
)

type Event struct {
	Topic   Topic     `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

type Handler func(Event)

// Sink receives a copy of every emitted event, off the caller's goroutine.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

type subscription struct {
	id uint64
	fn Handler
}

type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]subscription
	nextID   uint64

	sink        Sink
	sinkTimeout time.Duration
	wg          sync.WaitGroup

	log *slog.Logger
	now func() time.Time
}

func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		handlers:    make(map[Topic][]subscription),
		sinkTimeout: 5 * time.Second,
		log:         log,
		now:         time.Now,
	}
}

func (b *Bus) SetSink(s Sink) {
	b.mu.Lock()
	b.sink = s
	b.mu.Unlock()
}

// On registers fn for topic and returns a func that removes it.
func (b *Bus) On(topic Topic, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.off(topic, id) })
	}
}

func (b *Bus) off(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[topic]
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		delete(b.handlers, topic)
		return
	}
	b.handlers[topic] = out
}

// Emit runs the topic's handlers synchronously, in subscription order.
func (b *Bus) Emit(topic Topic, payload any) {
	e := Event{Topic: topic, At: b.now().UTC(), Payload: payload}

	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[topic]...)
	sink := b.sink
	b.mu.RUnlock()

	for _, s := range subs {
		b.call(s.fn, e)
	}

	if sink != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), b.sinkTimeout)
			defer cancel()
			if err := sink.Publish(ctx, e); err != nil {
				b.log.Error("event_sink_error", "topic", string(e.Topic), "error", err)
			}
		}()
	}
}

func (b *Bus) call(fn Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event_handler_panic", "topic", string(e.Topic), "panic", r)
		}
	}()
	fn(e)
}

// Wait blocks until pending sink deliveries are done.
func (b *Bus) Wait() {
	b.wg.Wait()
}
