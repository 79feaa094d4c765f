// Package channel wraps a Go channel in a small handoff type whose
// capacity depends on the build. Production builds buffer so producers
// on the game thread never wait; debug builds force a rendezvous so
// backpressure bugs surface in tests instead of hiding in a buffer.
package channel

// Pipe carries values from producers to a single consuming goroutine.
type Pipe[T any] struct {
	ch chan T
}

// Send blocks until the value is accepted.
func (p *Pipe[T]) Send(v T) {
	p.ch <- v
}

// TrySend hands off the value without blocking and reports whether it
// was accepted. Sending to a closed pipe panics, as with any channel.
func (p *Pipe[T]) TrySend(v T) bool {
	select {
	case p.ch <- v:
		return true
	default:
		return false
	}
}

// Receive exposes the consuming end for use in range loops and selects.
func (p *Pipe[T]) Receive() <-chan T {
	return p.ch
}

// Len returns how many values sit in the buffer. Always zero in debug
// builds.
func (p *Pipe[T]) Len() int {
	return len(p.ch)
}

// Close marks the pipe finished. Receive drains what is buffered and
// then reports closed.
func (p *Pipe[T]) Close() {
	close(p.ch)
}
