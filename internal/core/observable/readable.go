package observable

import "slices"

// Readable is the consumer side of a Value.
type Readable[T any] interface {
	Get() T
	Subscribe(fn func(T)) (unsubscribe func())
}

var _ Readable[int] = (*Value[int])(nil)

// Cloned exposes a slice value so that every reader gets its own copy and
// cannot write through to the stored slice.
func Cloned[E any](v *Value[[]E]) Readable[[]E] {
	return clonedSlice[E]{v: v}
}

type clonedSlice[E any] struct {
	v *Value[[]E]
}

func (c clonedSlice[E]) Get() []E {
	return slices.Clone(c.v.Get())
}

func (c clonedSlice[E]) Subscribe(fn func([]E)) (unsubscribe func()) {
	return c.v.Subscribe(func(s []E) { fn(slices.Clone(s)) })
}
