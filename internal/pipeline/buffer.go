package pipeline

// RingBuffer is a growable circular buffer of samples carried between
// pipeline stages. It is not safe for concurrent use; blocks are driven
// from a single goroutine.
type RingBuffer[T any] struct {
	data     []T
	capacity int
	size     int
	readPos  int
	writePos int
}

// NewRingBuffer creates a new ring buffer with the specified capacity.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &RingBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Write appends samples, growing the buffer when needed.
func (b *RingBuffer[T]) Write(samples []T) {
	needed := len(samples)
	if needed == 0 {
		return
	}

	if b.size+needed > b.capacity {
		b.grow(b.size + needed)
	}

	// At most two copies: up to the end of storage, then from the start.
	n := copy(b.data[b.writePos:], samples)
	if n < needed {
		copy(b.data, samples[n:])
	}
	b.writePos = (b.writePos + needed) % b.capacity
	b.size += needed
}

// Peek returns a copy of up to n samples without removing them.
func (b *RingBuffer[T]) Peek(n int) []T {
	n = min(n, b.size)
	if n <= 0 {
		return []T{}
	}

	result := make([]T, n)
	c := copy(result, b.data[b.readPos:min(b.readPos+n, b.capacity)])
	if c < n {
		copy(result[c:], b.data[:n-c])
	}
	return result
}

// Discard drops up to n samples from the front of the buffer.
func (b *RingBuffer[T]) Discard(n int) {
	n = min(n, b.size)
	if n <= 0 {
		return
	}
	b.readPos = (b.readPos + n) % b.capacity
	b.size -= n
	if b.size == 0 {
		b.readPos, b.writePos = 0, 0
	}
}

// Available returns the number of buffered samples.
func (b *RingBuffer[T]) Available() int {
	return b.size
}

// Capacity returns the current buffer capacity.
func (b *RingBuffer[T]) Capacity() int {
	return b.capacity
}

// Clear removes all samples from the buffer.
func (b *RingBuffer[T]) Clear() {
	b.size = 0
	b.readPos = 0
	b.writePos = 0
}

// grow increases the buffer capacity to at least minCapacity, keeping order.
func (b *RingBuffer[T]) grow(minCapacity int) {
	newCapacity := b.capacity
	for newCapacity < minCapacity {
		newCapacity *= bufferGrowthFactor
	}

	newData := make([]T, newCapacity)
	if b.size > 0 {
		if b.readPos < b.writePos {
			copy(newData, b.data[b.readPos:b.writePos])
		} else {
			n1 := copy(newData, b.data[b.readPos:])
			copy(newData[n1:], b.data[:b.writePos])
		}
	}

	b.data = newData
	b.capacity = newCapacity
	b.readPos = 0
	b.writePos = b.size % newCapacity
}
