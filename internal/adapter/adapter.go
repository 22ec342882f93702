// Package adapter defines the conversion contract shared by every pair of
// record representations.
//
// An Adapter must be total and pure: it never fails, never mutates its input
// and returns the same output for the same input. There is no error path; a
// conversion that can fail is a design violation, not a runtime condition.
package adapter

// Adapter converts a value of type From into a value of type To.
type Adapter[From, To any] interface {
	Adapt(from From) To
}

// Func lets an ordinary function satisfy Adapter.
type Func[From, To any] func(From) To

// Adapt calls f(from).
func (f Func[From, To]) Adapt(from From) To {
	return f(from)
}

// Identity is the adapter used when the source and target types are the same.
func Identity[T any]() Func[T, T] {
	return func(v T) T { return v }
}

// Compose chains two adapters into one.
func Compose[A, B, C any](ab Adapter[A, B], bc Adapter[B, C]) Func[A, C] {
	return func(a A) C {
		return bc.Adapt(ab.Adapt(a))
	}
}

// All adapts every element of in, preserving order and length.
// A nil slice yields an empty, non-nil slice.
func All[From, To any](a Adapter[From, To], in []From) []To {
	out := make([]To, 0, len(in))
	for _, v := range in {
		out = append(out, a.Adapt(v))
	}
	return out
}
