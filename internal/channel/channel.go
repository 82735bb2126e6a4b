// Package channel wraps the queues behind buffered dispatcher commands.
package channel

// Receiver provides read access to a queue.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a queue.
type Sender[T any] interface {
	// Send blocks until the value is accepted.
	Send(T)
	// TrySend reports false instead of blocking.
	TrySend(T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
