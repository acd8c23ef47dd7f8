package testfixtures

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces deterministic UUIDs for tests. Successive calls
// yield distinct, reproducible values ordered by their trailing
// counter bytes.
type IDGenerator struct {
	mu      sync.Mutex
	counter uint64
}

// NewIDGenerator constructs a deterministic UUID generator starting
// from one.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns the next UUID in the sequence.
func (g *IDGenerator) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++

	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], g.counter)
	// Stamp version 4 and variant bits so the value parses as a
	// canonical random UUID.
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

// NextFunc exposes Next as a function suitable for dependency
// injection.
func (g *IDGenerator) NextFunc() func() uuid.UUID {
	if g == nil {
		return uuid.New
	}
	return g.Next
}

// SetCounter overrides the internal counter, enabling deterministic
// resets.
func (g *IDGenerator) SetCounter(counter uint64) {
	g.mu.Lock()
	g.counter = counter
	g.mu.Unlock()
}
