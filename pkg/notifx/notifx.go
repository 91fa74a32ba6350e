// Package notifx fans out platform events (tool denials, provider
// reauth prompts, rate-limit hits) to live subscribers over whatever
// transport the caller bridges a Subscription's channel to (SSE, WS).
//
// Delivery is best-effort and in-process only: a subscriber's queue is
// bounded, and a full queue drops the oldest event of the same Kind to
// make room rather than blocking the publisher or growing unbounded.
// If no same-kind event is queued, the oldest event overall is dropped.
// Each overflow enqueues a single KindEventsDropped marker naming the
// kind discarded (and how many events it took to clear room for both
// the new event and the marker itself), so a subscriber can detect
// that it missed something instead of silently falling behind.
package notifx

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/logx"
)

// Subscription is a single subscriber's inbox. Events is read-only from
// the caller's perspective; Close unregisters the subscription from its
// Bus and closes Events.
type Subscription struct {
	Events <-chan Event

	bus      *Bus
	id       uint64
	tenantID kernel.TenantID
	userID   *kernel.UserID

	mu     sync.Mutex
	queue  chan Event
	closed bool
}

// Close unregisters the subscription and releases its queue.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}

// enqueue applies the bounded-queue back-pressure policy. Called with
// the bus's subscriber lock held by the caller.
func (s *Subscription) enqueue(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- evt:
		return
	default:
	}

	// A dropped event and its marker both need a slot: freeing exactly
	// one (enough for evt alone) would leave the marker with nowhere to
	// go, so it would silently never fire. Reserve two unless the queue
	// can never hold two events at once, in which case the marker is
	// skipped rather than sacrificing delivery of evt itself.
	need := 2
	if cap(s.queue) < 2 {
		need = 1
	}
	droppedKind, count := s.makeRoom(need, evt.Kind)

	select {
	case s.queue <- evt:
	default:
		logx.Warnf("notifx: subscriber %d queue still full after drop, discarding kind=%s", s.id, evt.Kind)
		return
	}
	if need == 2 && count > 0 {
		s.emitDropMarker(droppedKind, count)
	}
}

// makeRoom evicts up to need queued events to make room for what the
// caller is about to enqueue: the oldest event sharing kind first (the
// common overflow case, a noisy repeated event crowding the queue),
// then, if that wasn't enough, the oldest events overall regardless of
// kind. It reports the Kind of the first event it evicted and how many
// it evicted in total (0 if the queue had nothing to give, which can
// happen if a receiver drained it between the caller's failed send and
// this call).
func (s *Subscription) makeRoom(need int, kind Kind) (droppedKind Kind, count int) {
	n := len(s.queue)
	drained := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		drained = append(drained, <-s.queue)
	}

	kept := make([]Event, 0, n)
	removedSameKind := false
	for _, e := range drained {
		if !removedSameKind && e.Kind == kind {
			removedSameKind = true
			droppedKind = e.Kind
			count++
			continue
		}
		kept = append(kept, e)
	}

	if count < need {
		rest := make([]Event, 0, len(kept))
		for _, e := range kept {
			if count < need {
				if count == 0 {
					droppedKind = e.Kind
				}
				count++
				continue
			}
			rest = append(rest, e)
		}
		kept = rest
	}

	for _, e := range kept {
		s.queue <- e
	}
	return droppedKind, count
}

// emitDropMarker pushes a single events_dropped event naming the kind
// and count of events discarded to make room — best-effort, like
// everything else on this path: if the queue is already full again it
// is silently skipped rather than recursing into another drop.
func (s *Subscription) emitDropMarker(kind Kind, count int) {
	marker := Event{
		Kind:      KindEventsDropped,
		TenantID:  s.tenantID,
		UserID:    s.userID,
		Payload:   EventsDroppedPayload{Kind: kind, Count: count},
		CreatedAt: time.Now(),
	}
	select {
	case s.queue <- marker:
	default:
	}
}

// Bus is an in-process fan-out hub. A process runs exactly one Bus;
// subscribers attach per connection (one SSE stream or WS socket each).
type Bus struct {
	mu      sync.RWMutex
	nextID  uint64
	byID    map[uint64]*Subscription
	closed  atomic.Bool
}

// NewBus creates an empty, ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{
		byID: make(map[uint64]*Subscription),
	}
}

// Subscribe registers a new subscription for a tenant, optionally
// narrowed to a single user. Broadcasts (events with UserID == nil)
// reach every subscriber in the tenant; targeted events reach only
// subscribers whose userID matches.
func (b *Bus) Subscribe(tenantID kernel.TenantID, userID *kernel.UserID, opts ...Option) (*Subscription, error) {
	if b.closed.Load() {
		return nil, notifxErrors.New(ErrBusClosed)
	}
	so := applyOptions(opts)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID

	sub := &Subscription{
		bus:      b,
		id:       id,
		tenantID: tenantID,
		userID:   userID,
		queue:    make(chan Event, so.QueueSize),
	}
	sub.Events = sub.queue
	b.byID[id] = sub
	return sub, nil
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byID, s.id)
}

// Publish delivers evt to every matching subscriber without blocking
// on any of them. A zero evt.UserID broadcasts to the whole tenant.
func (b *Bus) Publish(evt Event) {
	if evt.TenantID.IsEmpty() {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.byID {
		if sub.tenantID != evt.TenantID {
			continue
		}
		if evt.TargetsUser() && (sub.userID == nil || *sub.userID != *evt.UserID) {
			continue
		}
		sub.enqueue(evt)
	}
}

// Close unsubscribes and closes every live subscription. The Bus
// rejects further Subscribe calls afterward.
func (b *Bus) Close() {
	b.closed.Store(true)
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.byID))
	for _, s := range b.byID {
		subs = append(subs, s)
	}
	b.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}
