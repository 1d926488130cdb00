package invoker

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// typeKey returns the reflect.Type identifying T. It is used only as a map
// key for duplicate detection; all matching happens through closures built
// at registration time.
func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// errorMatcher reports whether it recognizes err and, if so, whether the
// error should be retried.
type errorMatcher func(err error) (matched, retry bool)

// responseMatcher reports whether it recognizes a response value and, if
// so, whether the response should be retried.
type responseMatcher func(v any) (matched, retry bool)

type errorEntry struct {
	key   reflect.Type
	iface bool
	match errorMatcher
}

// errorRegistry holds error retry classifications keyed by type. Lookups
// consult concrete-typed registrations before interface-typed ones, each
// group in registration order, and stop at the first matching entry, so a
// registration for a specific kind always beats a broader interface
// registration. Unregistered error kinds are never retryable.
type errorRegistry struct {
	mu      sync.RWMutex
	entries []errorEntry
	keys    map[reflect.Type]struct{}
}

func (r *errorRegistry) add(key reflect.Type, match errorMatcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keys == nil {
		r.keys = make(map[reflect.Type]struct{})
	}
	if _, ok := r.keys[key]; ok {
		return fmt.Errorf("%w for type %s", ErrDuplicateRegistration, key)
	}
	r.keys[key] = struct{}{}
	r.entries = append(r.entries, errorEntry{
		key:   key,
		iface: key.Kind() == reflect.Interface,
		match: match,
	})
	return nil
}

func (r *errorRegistry) shouldRetry(err error) bool {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	for _, e := range entries {
		if e.iface {
			continue
		}
		if matched, retry := e.match(err); matched {
			return retry
		}
	}
	for _, e := range entries {
		if !e.iface {
			continue
		}
		if matched, retry := e.match(err); matched {
			return retry
		}
	}
	return false
}

type responseEntry struct {
	key   reflect.Type
	iface bool
	match responseMatcher
}

// responseRegistry holds response retry classifications keyed by type, with
// the same ordering rules as errorRegistry.
type responseRegistry struct {
	mu      sync.RWMutex
	entries []responseEntry
	keys    map[reflect.Type]struct{}
}

func (r *responseRegistry) add(key reflect.Type, match responseMatcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keys == nil {
		r.keys = make(map[reflect.Type]struct{})
	}
	if _, ok := r.keys[key]; ok {
		return fmt.Errorf("%w for type %s", ErrDuplicateRegistration, key)
	}
	r.keys[key] = struct{}{}
	r.entries = append(r.entries, responseEntry{
		key:   key,
		iface: key.Kind() == reflect.Interface,
		match: match,
	})
	return nil
}

func (r *responseRegistry) shouldRetry(v any) bool {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	for _, e := range entries {
		if e.iface {
			continue
		}
		if matched, retry := e.match(v); matched {
			return retry
		}
	}
	for _, e := range entries {
		if !e.iface {
			continue
		}
		if matched, retry := e.match(v); matched {
			return retry
		}
	}
	return false
}

// AddErrorToRetryOn registers error kind T as retryable. A nil predicate
// means every instance of T is retryable. Matching walks the error's unwrap
// chain via errors.As; the first registered kind that matches decides, with
// concrete kinds consulted before interface kinds.
//
// Registering the same kind twice fails with ErrDuplicateRegistration.
func AddErrorToRetryOn[T error](inv *Invoker, predicate func(T) bool) error {
	if inv == nil {
		return ErrNilInvoker
	}

	match := func(err error) (bool, bool) {
		var target T
		if !errors.As(err, &target) {
			return false, false
		}
		if predicate == nil {
			return true, true
		}
		return true, predicate(target)
	}
	return inv.errorRetry.add(typeKey[T](), match)
}

// AddResponseToRetryOn registers response kind T as a retry trigger: a
// successful response of kind T is retried when the predicate holds. The
// predicate is mandatory: an unconditional response retry would never
// settle on a result.
//
// Registering the same kind twice fails with ErrDuplicateRegistration.
func AddResponseToRetryOn[T any](inv *Invoker, predicate func(T) bool) error {
	if inv == nil {
		return ErrNilInvoker
	}
	if predicate == nil {
		return ErrNilPredicate
	}

	match := func(v any) (bool, bool) {
		t, ok := v.(T)
		if !ok {
			return false, false
		}
		return true, predicate(t)
	}
	return inv.responseRetry.add(typeKey[T](), match)
}
