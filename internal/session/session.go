// Package session provides the bounded conversation memory.
package session

import "sync"

// DefaultCapacity is the number of turns kept when no capacity is given.
const DefaultCapacity = 10

// Turn is a single utterance. Its speaker is implied by position:
// even indexes are human turns, odd indexes are agent turns.
type Turn = string

// Buffer is an ordered, capacity-bounded log of recent turns.
// The oldest turns are evicted first once the capacity is exceeded.
type Buffer struct {
	turns    []Turn
	capacity int
	mu       sync.RWMutex
}

// NewBuffer creates a buffer holding at most capacity turns.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		turns:    make([]Turn, 0, capacity+2),
		capacity: capacity,
	}
}

// Append inserts a turn at the tail and evicts from the head while over capacity.
func (b *Buffer) Append(turn Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendLocked(turn)
}

// AppendExchange appends a human input and the agent reply as one unit,
// so the buffer never holds a dangling half of an exchange.
func (b *Buffer) AppendExchange(input, reply Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendLocked(input)
	b.appendLocked(reply)
}

func (b *Buffer) appendLocked(turn Turn) {
	b.turns = append(b.turns, turn)
	if over := len(b.turns) - b.capacity; over > 0 {
		b.turns = append(b.turns[:0], b.turns[over:]...)
	}
}

// Snapshot returns a copy of the last n turns, oldest first.
// n <= 0 or n larger than the buffer returns every turn.
func (b *Buffer) Snapshot(n int) []Turn {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := 0
	if n > 0 && n < len(b.turns) {
		start = len(b.turns) - n
	}
	result := make([]Turn, len(b.turns)-start)
	copy(result, b.turns[start:])
	return result
}

// Len returns the number of stored turns.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}

// Capacity returns the maximum number of stored turns.
func (b *Buffer) Capacity() int {
	return b.capacity
}
