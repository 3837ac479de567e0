// Package observable provides a value that consumers can read and subscribe
// to. Writers are expected to be the single owning component.
package observable

import (
	"slices"
	"sync"
)

type Value[T any] struct {
	// notifyMu orders writes and subscriber notification; mu guards fields.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	value    T
	nextID   int
	subs     map[int]func(T)
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{value: initial, subs: make(map[int]func(T))}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set replaces the value and notifies subscribers in subscription order.
func (v *Value[T]) Set(value T) {
	v.Update(func(T) T { return value })
}

// Update replaces the value with fn applied to the current one.
func (v *Value[T]) Update(fn func(T) T) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	v.value = fn(v.value)
	current := v.value
	subs := v.snapshot()
	v.mu.Unlock()

	for _, fn := range subs {
		fn(current)
	}
}

// Subscribe calls fn with the current value and then after every update,
// until the returned function is called. fn must not write to v.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	current := v.value
	v.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
		})
	}
}

func (v *Value[T]) snapshot() []func(T) {
	ids := make([]int, 0, len(v.subs))
	for id := range v.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(T), len(ids))
	for i, id := range ids {
		out[i] = v.subs[id]
	}
	return out
}
