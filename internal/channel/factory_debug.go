//go:build debug

package channel

// New ignores size in debug builds so every buffered command runs in
// lockstep with its worker, which exposes ordering bugs.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
