//go:build !debug

package channel

// New creates a pipe buffered to size.
func New[T any](size int) *Pipe[T] {
	return &Pipe[T]{ch: make(chan T, size)}
}
