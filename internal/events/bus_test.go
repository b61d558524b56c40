package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func TestBus_EmitInOrder(t *testing.T) {
	t.Parallel()

	b := New(logging.Discard())
	var got []string
	b.On(OrderPlaced, func(e Event) { got = append(got, "first:"+e.Payload.(string)) })
	b.On(OrderPlaced, func(e Event) { got = append(got, "second:"+e.Payload.(string)) })
	b.On(OrderAssigned, func(Event) { got = append(got, "other") })

	b.Emit(OrderPlaced, "o1")

	assert.Equal(t, []string{"first:o1", "second:o1"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	b := New(logging.Discard())
	calls := 0
	off := b.On(RefreshNotifications, func(Event) { calls++ })

	b.Emit(RefreshNotifications, nil)
	off()
	off()
	b.Emit(RefreshNotifications, nil)

	assert.Equal(t, 1, calls)
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	b := New(logging.Discard())
	reached := false
	b.On(SessionEnded, func(Event) { panic("boom") })
	b.On(SessionEnded, func(Event) { reached = true })

	require.NotPanics(t, func() { b.Emit(SessionEnded, nil) })
	assert.True(t, reached)
}

func TestBus_ForwardsToSink(t *testing.T) {
	t.Parallel()

	b := New(logging.Discard())
	sink := &recordingSink{err: errors.New("broker down")}
	b.SetSink(sink)

	b.Emit(OrderPlaced, map[string]int{"orders": 2})
	b.Emit(SessionStarted, nil)
	b.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	topics := []Topic{sink.events[0].Topic, sink.events[1].Topic}
	assert.ElementsMatch(t, []Topic{OrderPlaced, SessionStarted}, topics)
}
