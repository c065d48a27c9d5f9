// Package observable provides a mutex-guarded value container with
// subscribe/notify semantics, decoupled from any rendering layer.
package observable

import "sync"

// Value holds a T and notifies subscribers after every change. Subscribers
// are called outside the state lock, in subscription order, with the new
// value. Notifications are serialized: every subscriber sees changes in the
// order they were stored, and the last value delivered is the current one.
// A subscriber may call Get or Subscribe but must not call Set or Update on
// the same Value.
type Value[T any] struct {
	notify sync.Mutex
	mu     sync.Mutex
	v      T
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// New returns a Value holding v.
func New[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Get returns the current value.
func (o *Value[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v
}

// Set replaces the value and notifies subscribers.
func (o *Value[T]) Set(v T) {
	o.Update(func(T) T { return v })
}

// Update applies fn to the current value under the lock, stores the result
// and notifies subscribers.
func (o *Value[T]) Update(fn func(T) T) {
	o.notify.Lock()
	defer o.notify.Unlock()

	o.mu.Lock()
	o.v = fn(o.v)
	v := o.v
	subs := make([]subscriber[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (o *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, subscriber[T]{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, s := range o.subs {
				if s.id == id {
					o.subs = append(o.subs[:i], o.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of active subscribers.
func (o *Value[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
