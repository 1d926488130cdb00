package invoker

import (
	"sync"
	"time"
)

// CallMetadata identifies one top-level invocation across all of its
// lifecycle events.
type CallMetadata struct {
	// CallID uniquely identifies the call.
	CallID string

	// Invoker is the name of the invoker performing the call.
	Invoker string

	// Operation is the caller-supplied operation name.
	Operation string

	// Start is when the call began.
	Start time.Time
}

// Event handler signatures for the five observation points.
type (
	// CallBeginFunc observes the start of a call, after the initial handle
	// has been acquired.
	CallBeginFunc func(meta CallMetadata)

	// BeforeInvokeFunc observes the start of each attempt.
	BeforeInvokeFunc func(attempt int, meta CallMetadata)

	// AfterInvokeFunc observes each attempt that returned normally. It fires
	// even when the response is classified retryable.
	AfterInvokeFunc func(attempt int, response any, meta CallMetadata)

	// ExceptionFunc observes each attempt that failed, whether or not the
	// error is classified retryable.
	ExceptionFunc func(err error, attempt int, meta CallMetadata)

	// CallSuccessFunc observes the single success exit of a call.
	CallSuccessFunc func(elapsed time.Duration, response any, attempts int, meta CallMetadata)
)

// Subscription represents an active event subscription.
type Subscription struct {
	cancel func()
}

// Unsubscribe removes the subscriber. It is safe to call more than once.
func (s Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

type eventSub[F any] struct {
	id uint64
	fn F
}

// eventList is an ordered set of subscribers for one observation point.
// Delivery happens in subscription order, synchronously on the calling
// goroutine. Subscriber panics are not isolated: a panicking subscriber
// aborts the in-flight call.
type eventList[F any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []eventSub[F]
}

func (l *eventList[F]) subscribe(fn F) Subscription {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, eventSub[F]{id: id, fn: fn})
	l.mu.Unlock()

	return Subscription{cancel: func() { l.remove(id) }}
}

func (l *eventList[F]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *eventList[F]) snapshot() []eventSub[F] {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]eventSub[F], len(l.subs))
	copy(out, l.subs)
	return out
}

type events struct {
	callBegin    eventList[CallBeginFunc]
	beforeInvoke eventList[BeforeInvokeFunc]
	afterInvoke  eventList[AfterInvokeFunc]
	exception    eventList[ExceptionFunc]
	callSuccess  eventList[CallSuccessFunc]
}

func (e *events) emitCallBegin(meta CallMetadata) {
	for _, s := range e.callBegin.snapshot() {
		s.fn(meta)
	}
}

func (e *events) emitBeforeInvoke(attempt int, meta CallMetadata) {
	for _, s := range e.beforeInvoke.snapshot() {
		s.fn(attempt, meta)
	}
}

func (e *events) emitAfterInvoke(attempt int, response any, meta CallMetadata) {
	for _, s := range e.afterInvoke.snapshot() {
		s.fn(attempt, response, meta)
	}
}

func (e *events) emitException(err error, attempt int, meta CallMetadata) {
	for _, s := range e.exception.snapshot() {
		s.fn(err, attempt, meta)
	}
}

func (e *events) emitCallSuccess(elapsed time.Duration, response any, attempts int, meta CallMetadata) {
	for _, s := range e.callSuccess.snapshot() {
		s.fn(elapsed, response, attempts, meta)
	}
}

// OnCallBegin subscribes to the call-begin event, fired once per call after
// the initial handle is acquired. Subscribers run synchronously and must
// not block; a panicking subscriber aborts the call.
func (inv *Invoker) OnCallBegin(fn CallBeginFunc) Subscription {
	return inv.events.callBegin.subscribe(fn)
}

// OnBeforeInvoke subscribes to the before-invoke event, fired before every
// attempt.
func (inv *Invoker) OnBeforeInvoke(fn BeforeInvokeFunc) Subscription {
	return inv.events.beforeInvoke.subscribe(fn)
}

// OnAfterInvoke subscribes to the after-invoke event, fired after every
// attempt that returned normally, including responses that will be retried.
func (inv *Invoker) OnAfterInvoke(fn AfterInvokeFunc) Subscription {
	return inv.events.afterInvoke.subscribe(fn)
}

// OnException subscribes to the exception event, fired for every failed
// attempt before the error is classified.
func (inv *Invoker) OnException(fn ExceptionFunc) Subscription {
	return inv.events.exception.subscribe(fn)
}

// OnCallSuccess subscribes to the call-success event, fired once when a
// call returns an accepted response.
func (inv *Invoker) OnCallSuccess(fn CallSuccessFunc) Subscription {
	return inv.events.callSuccess.subscribe(fn)
}
