//go:build debug

package channel

// New creates an unbuffered pipe; size is ignored so every send is a
// rendezvous with the consumer.
func New[T any](size int) *Pipe[T] {
	return &Pipe[T]{ch: make(chan T)}
}
