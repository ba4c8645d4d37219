// Package stream provides the small reactive primitives the live-query
// and coordinator layers are built on: a latest-value Signal with
// context-scoped watches, and the map/combine/distinct/first operators
// over it. Combining signals always joins on the latest value from each
// input; there is no buffering of intermediate values, so a consumer that
// reads a combined signal sees a consistent, current snapshot rather than
// a replay of every update permutation.
package stream

import (
	"context"
	"sync"
)

// Signal holds the latest value of type T and notifies watchers on every
// Set. A Signal starts empty; watchers block until the first Set.
type Signal[T any] struct {
	mu      sync.Mutex
	value   T
	valid   bool
	changed chan struct{}
}

// New returns an empty signal.
func New[T any]() *Signal[T] {
	return &Signal[T]{changed: make(chan struct{})}
}

// Of returns a signal already holding v.
func Of[T any](v T) *Signal[T] {
	s := New[T]()
	s.Set(v)
	return s
}

// Set stores v as the latest value and wakes every watcher.
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	s.valid = true
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Get returns the latest value, if any.
func (s *Signal[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.valid
}

// Watch returns a channel that delivers the current value, then the value
// after each subsequent Set. Delivery is latest-wins: a slow receiver
// skips intermediate values and always gets the newest one. The channel
// closes when ctx ends.
func (s *Signal[T]) Watch(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			s.mu.Lock()
			v, valid, changed := s.value, s.valid, s.changed
			s.mu.Unlock()

			if !valid {
				select {
				case <-ctx.Done():
					return
				case <-changed:
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- v:
			case <-changed:
				// A newer value arrived before the receiver took this one.
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
		}
	}()
	return out
}

// Map derives a signal by applying f to every value of in. The derived
// signal stops updating when ctx ends.
func Map[T, U any](ctx context.Context, in *Signal[T], f func(T) U) *Signal[U] {
	out := New[U]()
	go func() {
		for v := range in.Watch(ctx) {
			out.Set(f(v))
		}
	}()
	return out
}

// Combine2 derives a signal from the latest values of two inputs. The
// output first fires once both inputs hold a value, then again whenever
// either updates.
func Combine2[A, B, U any](ctx context.Context, a *Signal[A], b *Signal[B], f func(A, B) U) *Signal[U] {
	out := New[U]()
	go func() {
		ca, cb := a.Watch(ctx), b.Watch(ctx)
		var va A
		var vb B
		haveA, haveB := false, false
		for ca != nil || cb != nil {
			select {
			case v, ok := <-ca:
				if !ok {
					ca = nil
					continue
				}
				va, haveA = v, true
			case v, ok := <-cb:
				if !ok {
					cb = nil
					continue
				}
				vb, haveB = v, true
			}
			if haveA && haveB {
				out.Set(f(va, vb))
			}
		}
	}()
	return out
}

// Combine3 is Combine2 for three inputs.
func Combine3[A, B, C, U any](ctx context.Context, a *Signal[A], b *Signal[B], c *Signal[C], f func(A, B, C) U) *Signal[U] {
	ab := Combine2(ctx, a, b, func(va A, vb B) func(C) U {
		return func(vc C) U { return f(va, vb, vc) }
	})
	return Combine2(ctx, ab, c, func(g func(C) U, vc C) U { return g(vc) })
}

// DistinctFunc derives a signal that drops updates eq considers equal to
// the previously emitted value. The first value always passes.
func DistinctFunc[T any](ctx context.Context, in *Signal[T], eq func(a, b T) bool) *Signal[T] {
	out := New[T]()
	go func() {
		var prev T
		first := true
		for v := range in.Watch(ctx) {
			if first || !eq(prev, v) {
				out.Set(v)
				prev, first = v, false
			}
		}
	}()
	return out
}

// First blocks until the signal holds a value satisfying pred and returns
// it, or returns ctx.Err when the context ends first.
func First[T any](ctx context.Context, s *Signal[T], pred func(T) bool) (T, error) {
	for v := range s.Watch(ctx) {
		if pred(v) {
			return v, nil
		}
	}
	var zero T
	return zero, ctx.Err()
}
