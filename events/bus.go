package events

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
)

// Handler reacts to a single event. Returned errors are logged by the bus.
type Handler func(ctx context.Context, ev Event) error

// Bus is an in-process publish/subscribe channel. Every subscriber owns an
// unbounded FIFO queue, so Publish never waits on subscriber processing and
// each subscriber observes events in publish order.
type Bus struct {
	name   string
	logger *log.Logger
	ctx    context.Context

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	// draining is set while Close waits for handlers. Events they publish
	// have no subscriber left and are dropped without noise.
	draining bool

	handlers sync.WaitGroup
}

func NewBus(name string, logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		name:   name,
		logger: logger,
		ctx:    context.Background(),
		subs:   make(map[uint64]*Subscription),
	}
}

func (b *Bus) Name() string { return b.name }

// Publish enqueues ev for every subscriber registered right now whose
// predicate matches. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		if !b.draining {
			b.logger.Printf("[bus:%s] publish after close dropped: type=%s id=%s", b.name, ev.Type, ev.ID)
		}
		return
	}
	for _, s := range b.subs {
		if s.matches(b, ev) {
			s.enqueue(ev)
		}
	}
}

// Subscribe returns a stream of every subsequently published event matching
// pred. The caller must keep reading Events() or Unsubscribe.
func (b *Bus) Subscribe(pred Predicate) *Subscription {
	s, _ := b.subscribe(pred, false)
	return s
}

// subscribe registers a subscription. With handled set it also counts a
// handler goroutine in the same critical section, so Close never waits on a
// group that is still growing. The bool is false when the bus was closed.
func (b *Bus) subscribe(pred Predicate, handled bool) (*Subscription, bool) {
	if pred == nil {
		pred = All
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{
		id:     b.nextID,
		bus:    b,
		match:  pred,
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		out:    make(chan Event),
	}
	open := !b.closed
	if open {
		b.subs[s.id] = s
		if handled {
			b.handlers.Add(1)
		}
	} else {
		s.closing = true
	}
	go s.pump()
	return s, open
}

// Handle subscribes and runs h for every matching event on its own
// goroutine. Errors and panics raised by h are logged and do not affect
// other subscribers or later events.
func (b *Bus) Handle(name string, pred Predicate, h Handler) *Subscription {
	s, open := b.subscribe(pred, true)
	if !open {
		b.logger.Printf("[bus:%s] handler %s not registered: bus closed", b.name, name)
		return s
	}
	go func() {
		defer b.handlers.Done()
		for ev := range s.Events() {
			b.dispatch(name, h, ev)
		}
	}()
	return s
}

func (b *Bus) dispatch(name string, h Handler, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Printf("[bus:%s] handler %s panicked on %s (id=%s): %v\n%s", b.name, name, ev.Type, ev.ID, rec, debug.Stack())
		}
	}()
	if err := h(b.ctx, ev); err != nil {
		b.logger.Printf("[bus:%s] handler %s failed on %s (id=%s): %v", b.name, name, ev.Type, ev.ID, err)
	}
}

// Close stops accepting events, lets handlers drain what is already queued
// and waits for them to return.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.handlers.Wait()
		return
	}
	b.closed = true
	b.draining = true
	subs := make([]*Subscription, 0, len(b.subs))
	for id, s := range b.subs {
		subs = append(subs, s)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.drainAndClose()
	}
	b.handlers.Wait()

	b.mu.Lock()
	b.draining = false
	b.mu.Unlock()
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription is one subscriber's queue on a Bus.
type Subscription struct {
	id    uint64
	bus   *Bus
	match Predicate

	mu      sync.Mutex
	queue   []Event
	closing bool
	notify  chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	out      chan Event
}

// Events is closed once the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.out }

// Unsubscribe ends delivery immediately; queued events are discarded.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.id)
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Subscription) matches(b *Bus, ev Event) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Printf("[bus:%s] predicate panicked on %s: %v", b.name, ev.Type, rec)
			ok = false
		}
	}()
	return s.match(ev)
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) drainAndClose() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.stop:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.stop:
			return
		}
	}
}

func (s *Subscription) String() string {
	return fmt.Sprintf("%s#%d", s.bus.name, s.id)
}
