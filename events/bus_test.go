package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu  sync.Mutex
	got []Event
}

func (r *recorder) handle(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return nil
}

func (r *recorder) types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.got))
	for _, ev := range r.got {
		out = append(out, ev.Type)
	}
	return out
}

func quietBus(t *testing.T) (*Bus, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewBus("test", log.New(&buf, "", 0)), &buf
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus, _ := quietBus(t)
	rec := &recorder{}
	bus.Handle("rec", All, rec.handle)

	bus.Publish(New(ContributerAdded, 1, 0, nil))
	bus.Publish(New(CheckinConfirmed, 1, 0, nil))
	bus.Publish(New(QuestCompleted, 1, 2, nil))
	bus.Close()

	assert.Equal(t, []Type{ContributerAdded, CheckinConfirmed, QuestCompleted}, rec.types())
}

func TestBus_Multicast(t *testing.T) {
	bus, _ := quietBus(t)
	a, b := &recorder{}, &recorder{}
	bus.Handle("a", All, a.handle)
	bus.Handle("b", All, b.handle)

	bus.Publish(New(QuestCompleted, 7, 3, nil))
	bus.Close()

	assert.Len(t, a.types(), 1)
	assert.Len(t, b.types(), 1)
}

func TestBus_PredicateFilters(t *testing.T) {
	bus, _ := quietBus(t)
	rec := &recorder{}
	bus.Handle("only-completed", OfType(QuestCompleted), rec.handle)

	bus.Publish(New(ContributerAdded, 1, 0, nil))
	bus.Publish(New(QuestCompleted, 1, 2, nil))
	bus.Close()

	assert.Equal(t, []Type{QuestCompleted}, rec.types())
}

func TestBus_FailingHandlerDoesNotStopOthers(t *testing.T) {
	bus, logs := quietBus(t)
	rec := &recorder{}
	bus.Handle("panics", All, func(context.Context, Event) error {
		panic("boom")
	})
	bus.Handle("errors", All, func(context.Context, Event) error {
		return errors.New("nope")
	})
	bus.Handle("rec", All, rec.handle)

	bus.Publish(New(QuestCompleted, 1, 1, nil))
	bus.Publish(New(QuestCompleted, 2, 1, nil))
	bus.Close()

	assert.Len(t, rec.types(), 2)
	assert.Contains(t, logs.String(), "handler panics panicked")
	assert.Contains(t, logs.String(), "handler errors failed")
}

func TestBus_FailingHandlerKeepsReceiving(t *testing.T) {
	bus, _ := quietBus(t)
	var mu sync.Mutex
	calls := 0
	bus.Handle("flaky", All, func(context.Context, Event) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			panic("first one fails")
		}
		return nil
	})

	bus.Publish(New(QuestCompleted, 1, 1, nil))
	bus.Publish(New(QuestCompleted, 1, 2, nil))
	bus.Close()

	assert.Equal(t, 2, calls)
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	bus, _ := quietBus(t)
	defer bus.Close()

	bus.Publish(New(ContributerAdded, 1, 0, nil))
	sub := bus.Subscribe(All)
	defer sub.Unsubscribe()
	bus.Publish(New(ContributerRemoved, 1, 0, nil))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, ContributerRemoved, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an event on the stream")
	}
}

func TestBus_PublishDoesNotWaitForHandlers(t *testing.T) {
	bus, _ := quietBus(t)
	release := make(chan struct{})
	rec := &recorder{}
	bus.Handle("slow", All, func(ctx context.Context, ev Event) error {
		<-release
		return rec.handle(ctx, ev)
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(New(StepVolunteerAdded, uint(i), 0, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow handler")
	}
	close(release)
	bus.Close()
	assert.Len(t, rec.types(), 100)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus, _ := quietBus(t)
	defer bus.Close()

	sub := bus.Subscribe(All)
	sub.Unsubscribe()
	bus.Publish(New(QuestCompleted, 1, 1, nil))

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	bus, logs := quietBus(t)
	rec := &recorder{}
	bus.Handle("rec", All, rec.handle)
	bus.Close()

	bus.Publish(New(QuestCompleted, 1, 1, nil))
	require.Empty(t, rec.types())
	assert.Contains(t, logs.String(), "publish after close dropped")
}

func TestBus_CloseDrainsHandlersThatPublishQuietly(t *testing.T) {
	bus, logs := quietBus(t)
	var handled int
	bus.Handle("echo", OfType(ContributerAdded), func(_ context.Context, ev Event) error {
		handled++
		bus.Publish(New(RequirementUpdated, ev.QuestID, 0, nil))
		return nil
	})
	for i := 0; i < 5; i++ {
		bus.Publish(New(ContributerAdded, uint(i+1), 1, nil))
	}
	bus.Close()

	assert.Equal(t, 5, handled)
	assert.NotContains(t, logs.String(), "publish after close dropped")

	bus.Publish(New(RequirementUpdated, 1, 0, nil))
	assert.Contains(t, logs.String(), "publish after close dropped")
}

func TestBus_HandleAfterCloseIsRefused(t *testing.T) {
	bus, logs := quietBus(t)
	bus.Close()

	var calls int
	sub := bus.Handle("late", All, func(context.Context, Event) error {
		calls++
		return nil
	})
	bus.Publish(New(QuestCompleted, 1, 1, nil))

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription of a closed bus should end")
	}
	bus.Close()
	assert.Zero(t, calls)
	assert.Contains(t, logs.String(), "handler late not registered")
}

func TestBus_HandleRacingCloseDoesNotHang(t *testing.T) {
	bus := NewBus("race", log.New(io.Discard, "", 0))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Handle("h", All, func(context.Context, Event) error { return nil })
		}()
	}
	done := make(chan struct{})
	go func() {
		bus.Close()
		close(done)
	}()
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	bus.Close()
}

func TestEvent_UintAcceptsJSONNumbers(t *testing.T) {
	ev := New(QuestCompleted, 1, 2, map[string]interface{}{
		"native":  uint(5),
		"json":    float64(9),
		"neg":     -1,
		"text":    "12",
		"garbage": "x",
	})

	n, ok := ev.Uint("native")
	assert.True(t, ok)
	assert.Equal(t, uint(5), n)

	n, ok = ev.Uint("json")
	assert.True(t, ok)
	assert.Equal(t, uint(9), n)

	n, ok = ev.Uint("text")
	assert.True(t, ok)
	assert.Equal(t, uint(12), n)

	_, ok = ev.Uint("neg")
	assert.False(t, ok)
	_, ok = ev.Uint("garbage")
	assert.False(t, ok)
	_, ok = ev.Uint("missing")
	assert.False(t, ok)
}
