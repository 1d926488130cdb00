package invoker

import (
	"fmt"
	"reflect"
	"sync"
)

// responseHandler inspects a response value and, when it applies, returns
// the transformed value.
type responseHandler func(v any) (out any, applied bool)

type handlerEntry struct {
	key   reflect.Type
	iface bool
	apply responseHandler
}

// handlerRegistry holds post-success response transforms keyed by type, at
// most one per type. Transforms chain: interface-typed handlers (the most
// general kinds) apply before concrete-typed handlers, each group in
// registration order, and every transform's output feeds the next lookup.
type handlerRegistry struct {
	mu      sync.RWMutex
	entries []handlerEntry
	keys    map[reflect.Type]struct{}
}

func (r *handlerRegistry) add(key reflect.Type, apply responseHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keys == nil {
		r.keys = make(map[reflect.Type]struct{})
	}
	if _, ok := r.keys[key]; ok {
		return fmt.Errorf("%w for type %s", ErrDuplicateRegistration, key)
	}
	r.keys[key] = struct{}{}
	r.entries = append(r.entries, handlerEntry{
		key:   key,
		iface: key.Kind() == reflect.Interface,
		apply: apply,
	})
	return nil
}

// transform runs every applicable handler over v in the documented order
// and returns the final value. Handler panics are not recovered; they
// propagate to the caller as a hard failure of the call.
func (r *handlerRegistry) transform(v any) any {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	for _, e := range entries {
		if !e.iface {
			continue
		}
		if out, applied := e.apply(v); applied {
			v = out
		}
	}
	for _, e := range entries {
		if e.iface {
			continue
		}
		if out, applied := e.apply(v); applied {
			v = out
		}
	}
	return v
}

// AddResponseHandler registers a post-success transform for responses of
// kind T. The optional guard decides per value whether the transform
// applies; a nil guard applies it to every T. Handlers run after a response
// is accepted and before it is returned, in the order documented on the
// registry: interface kinds before concrete kinds, registration order
// within each group, each output feeding the next handler.
//
// A transform that panics is not caught by the invoker.
//
// Registering a second handler for the same kind fails with
// ErrDuplicateRegistration.
func AddResponseHandler[T any](inv *Invoker, transform func(T) T, guard func(T) bool) error {
	if inv == nil {
		return ErrNilInvoker
	}
	if transform == nil {
		return ErrNilTransform
	}

	apply := func(v any) (any, bool) {
		t, ok := v.(T)
		if !ok {
			return v, false
		}
		if guard != nil && !guard(t) {
			return v, false
		}
		return transform(t), true
	}
	return inv.handlers.add(typeKey[T](), apply)
}
