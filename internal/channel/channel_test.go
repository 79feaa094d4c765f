package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe_SendReceiveOrder(t *testing.T) {
	p := New[int](2)

	p.Send(1)
	p.Send(2)
	assert.Equal(t, 2, p.Len())

	assert.Equal(t, 1, <-p.Receive())
	assert.Equal(t, 2, <-p.Receive())
	assert.Equal(t, 0, p.Len())
}

func TestPipe_TrySendFullBuffer(t *testing.T) {
	p := New[string](1)

	require.True(t, p.TrySend("a"))
	assert.False(t, p.TrySend("b"), "full pipe should reject")

	assert.Equal(t, "a", <-p.Receive())
	assert.True(t, p.TrySend("c"))
}

func TestPipe_TrySendRendezvous(t *testing.T) {
	// an unbuffered pipe accepts only when a receiver waits, which is
	// what debug builds produce for every pipe
	p := &Pipe[int]{ch: make(chan int)}

	assert.False(t, p.TrySend(1))

	ready := make(chan struct{})
	got := make(chan int)
	go func() {
		close(ready)
		got <- <-p.Receive()
	}()
	<-ready

	for !p.TrySend(42) {
	}
	assert.Equal(t, 42, <-got)
}

func TestPipe_CloseDrainsThenEnds(t *testing.T) {
	p := New[int](4)
	p.Send(7)
	p.Send(8)
	p.Close()

	assert.Equal(t, 7, <-p.Receive())
	assert.Equal(t, 8, <-p.Receive())

	_, ok := <-p.Receive()
	assert.False(t, ok)
}

func TestPipe_RangeOverClosed(t *testing.T) {
	p := New[int](8)
	for i := 0; i < 5; i++ {
		p.Send(i)
	}
	p.Close()

	var got []int
	for v := range p.Receive() {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}
