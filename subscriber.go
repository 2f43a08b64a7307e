package mpevent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yangosoft/mpevent/internal/futex"
)

// pollInterval bounds how long a discovery or cancellable wait blocks
// before re-checking its context — there is no way to interrupt a parked
// futex wait from another goroutine, so cancellation is approximated by
// polling on a short timeout instead of blocking indefinitely.
const pollInterval = 200 * time.Millisecond

// Subscriber is a per-process convenience facade over a Coordinator: it
// registers itself as a participant on construction, caches the
// waitables it creates via AddEvent, and adds edge-triggered discovery of
// new participants and events.
type Subscriber struct {
	id          uint64
	name        string
	coordinator *Coordinator

	mu     sync.Mutex
	events map[string]*Waitable

	onNewParticipant func(id uint64)
	onNewEvent       func(id uint64)
}

// NewSubscriber creates a Coordinator for namespace and registers name as
// a participant. It panics if registration fails — most commonly because
// name is already taken, which only happens if the caller reused a name.
func NewSubscriber(name, namespace string) *Subscriber {
	c := New(namespace)
	id, err := c.AddParticipant(name)
	if err != nil {
		panic(fmt.Sprintf("mpevent: NewSubscriber(%q, %q): %v", name, namespace, err))
	}
	return &Subscriber{
		id:          id,
		name:        name,
		coordinator: c,
		events:      make(map[string]*Waitable),
	}
}

// Name returns the subscriber's registered name.
func (s *Subscriber) Name() string { return s.name }

// ID returns the subscriber's participant id.
func (s *Subscriber) ID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetID overrides the cached participant id. Exposed for API parity;
// ordinary callers never need it since NewSubscriber already records the
// id AddParticipant assigned. Guarded by the same mutex as the discovery
// loops' reads of s.id, since nothing prevents a caller from invoking it
// concurrently with a wait in progress.
func (s *Subscriber) SetID(id uint64) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// Coordinator returns the underlying Coordinator.
func (s *Subscriber) Coordinator() *Coordinator { return s.coordinator }

func (s *Subscriber) getOrCreateEvent(userName string) (*Waitable, error) {
	qualified := qualify(s.coordinator.namespace, userName)

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.events[qualified]; ok {
		return w, nil
	}
	w, err := s.coordinator.AddEvent(s.id, userName)
	if err != nil {
		return nil, err
	}
	s.events[qualified] = w
	return w, nil
}

// TriggerEvent posts userName's waitable with value 1, waking up to
// wakeCount blocked waiters. The event is created if this subscriber has
// not used it before.
func (s *Subscriber) TriggerEvent(userName string, wakeCount uint32) error {
	w, err := s.getOrCreateEvent(userName)
	if err != nil {
		return err
	}
	_, err = w.PostWithValue(1, wakeCount)
	return err
}

// waitEdge blocks until w's cell is observed non-zero, resets it to 0,
// and returns nil — or returns ErrSpuriousWake if woken with the cell
// still zero. With a non-nil ctx, the wait is polled in pollInterval
// slices so ctx.Err() is returned promptly after cancellation; with a nil
// ctx it blocks indefinitely on a single futex wait.
func waitEdge(ctx context.Context, w *Waitable) error {
	if ctx == nil {
		if err := w.Wait(0); err != nil {
			return err
		}
		return consumeEdge(w)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := w.WaitTimeout(0, pollInterval)
		if err != nil {
			if errors.Is(err, futex.ErrTimeout) {
				continue // our own poll tick, not a real wake
			}
			return err
		}
		return consumeEdge(w)
	}
}

func consumeEdge(w *Waitable) error {
	if w.GetValue() == 0 {
		return ErrSpuriousWake
	}
	w.SetValue(0)
	return nil
}

// WaitOnEvent blocks until userName is triggered, consuming the wake.
// Returns ErrSpuriousWake if woken with nothing to report — callers that
// want automatic retry should loop on that error, or use
// WaitOnEventTimeout for a bounded wait instead.
func (s *Subscriber) WaitOnEvent(ctx context.Context, userName string) error {
	w, err := s.getOrCreateEvent(userName)
	if err != nil {
		return err
	}
	return waitEdge(ctx, w)
}

// WaitOnEventTimeout is like WaitOnEvent but returns ErrTimeout if the
// deadline elapses with the cell still zero, rather than ErrSpuriousWake.
func (s *Subscriber) WaitOnEventTimeout(userName string, timeout time.Duration) error {
	w, err := s.getOrCreateEvent(userName)
	if err != nil {
		return err
	}
	ferr := w.WaitTimeout(0, timeout)
	if ferr != nil && !errors.Is(ferr, futex.ErrTimeout) {
		return ferr
	}
	if w.GetValue() == 0 {
		return ErrTimeout
	}
	w.SetValue(0)
	return nil
}

// waitOnInternalEvent waits on a built-in event without going through the
// local cache or AddEvent, so built-ins never appear as user events in
// the Directory: it synthesizes a transient Event record with the
// qualified built-in name and derives its waitable directly, discarding
// both once the wait resolves.
func (s *Subscriber) waitOnInternalEvent(ctx context.Context, builtinName string) error {
	var e Event
	if err := e.SetName(qualify(s.coordinator.namespace, builtinName)); err != nil {
		return newError("wait_on_internal_event", KindNoWaitable, err)
	}
	w, err := e.GetWaitable(s.coordinator.shmDir)
	if err != nil {
		return newError("wait_on_internal_event", KindNoWaitable, err)
	}
	defer w.Close(false)
	return waitEdge(ctx, w)
}

// WaitOnInternalEvent is the exported form of waitOnInternalEvent, for
// applications that want to wait on a built-in directly instead of
// through WaitOnNewParticipant/WaitOnNewEvent.
func (s *Subscriber) WaitOnInternalEvent(ctx context.Context, builtinName string) error {
	return s.waitOnInternalEvent(ctx, builtinName)
}

// SetOnCreateParticipantCallback installs fn to be invoked, exactly once
// per call to WaitOnNewParticipant, when that wait resolves to a foreign
// participant's creation.
func (s *Subscriber) SetOnCreateParticipantCallback(fn func(participantID uint64)) {
	s.mu.Lock()
	s.onNewParticipant = fn
	s.mu.Unlock()
}

// SetOnCreateEventCallback installs fn to be invoked, exactly once per
// call to WaitOnNewEvent, when that wait resolves to a foreign event's
// creation.
func (s *Subscriber) SetOnCreateEventCallback(fn func(eventID uint64)) {
	s.mu.Lock()
	s.onNewEvent = fn
	s.mu.Unlock()
}

// WaitOnNewParticipant blocks until a participant other than this one is
// registered, then invokes the on-create-participant callback (if any)
// with its id. Only the most recent id is considered: if two foreign
// participants are created back-to-back and a wake is missed between
// them, the first is silently skipped — a discovery hint, not an event
// log.
func (s *Subscriber) WaitOnNewParticipant(ctx context.Context) error {
	for {
		before, hasBefore := s.coordinator.LastParticipantID()

		if err := s.waitOnInternalEvent(ctx, BuiltinNewParticipant); err != nil {
			if errors.Is(err, ErrSpuriousWake) {
				continue
			}
			return err
		}

		after, hasAfter := s.coordinator.LastParticipantID()
		if !hasAfter {
			continue
		}
		if hasBefore && after == before {
			continue
		}
		if after == s.ID() {
			continue // self-induced, keep waiting
		}

		s.mu.Lock()
		cb := s.onNewParticipant
		s.mu.Unlock()
		if cb != nil {
			cb(after)
		}
		return nil
	}
}

// WaitOnNewEvent is WaitOnNewParticipant's counterpart for event
// creation: it blocks until an event owned by a participant other than
// this one is registered, then invokes the on-create-event callback (if
// any) with its id.
func (s *Subscriber) WaitOnNewEvent(ctx context.Context) error {
	for {
		before, hasBefore := s.coordinator.LastEventID()

		if err := s.waitOnInternalEvent(ctx, BuiltinNewEvent); err != nil {
			if errors.Is(err, ErrSpuriousWake) {
				continue
			}
			return err
		}

		after, hasAfter := s.coordinator.LastEventID()
		if !hasAfter {
			continue
		}
		if hasBefore && after == before {
			continue
		}
		creator, ok := s.coordinator.ParticipantIDByEventID(after)
		if !ok || creator == s.ID() {
			continue
		}

		s.mu.Lock()
		cb := s.onNewEvent
		s.mu.Unlock()
		if cb != nil {
			cb(after)
		}
		return nil
	}
}

// Close unlinks and unmaps the underlying Coordinator.
func (s *Subscriber) Close() error {
	return s.coordinator.Close(true)
}
