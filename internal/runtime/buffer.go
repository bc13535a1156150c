package runtime

import (
	"sync"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// DefaultBufferLimit bounds how many lines a run keeps between clears.
const DefaultBufferLimit = 1024

// SessionBuffer holds the lines received since the last clear.
// Append (the transport's receive path) and Clear/Match (the executor) share one lock,
// so a clear is totally ordered with respect to arrivals.
type SessionBuffer struct {
	mu        sync.Mutex
	lines     []string
	limit     int
	clearedAt time.Time
	changed   chan struct{}
}

// NewSessionBuffer creates a buffer that keeps at most limit lines, dropping the oldest.
func NewSessionBuffer(limit int) *SessionBuffer {
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	return &SessionBuffer{
		limit:     limit,
		clearedAt: time.Now(),
		changed:   make(chan struct{}, 1),
	}
}

// Append records a received line. It has the ports.LineHandler signature.
func (b *SessionBuffer) Append(line string) {
	b.mu.Lock()
	if len(b.lines) >= b.limit {
		copy(b.lines, b.lines[1:])
		b.lines = b.lines[:len(b.lines)-1]
	}
	b.lines = append(b.lines, line)
	b.mu.Unlock()

	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// Clear discards every line and returns the instant of the clear.
func (b *SessionBuffer) Clear() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = b.lines[:0]
	b.clearedAt = time.Now()
	return b.clearedAt
}

// ClearedAt returns the instant of the most recent clear.
func (b *SessionBuffer) ClearedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clearedAt
}

// Lines returns a copy of the buffered lines in arrival order.
func (b *SessionBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Match rescans the buffer under the lock.
func (b *SessionBuffer) Match(expected string, mode domain.MatchMode) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return MatchLine(b.lines, expected, mode)
}

// Changed is signalled after appends. Several appends may coalesce into one signal.
func (b *SessionBuffer) Changed() <-chan struct{} {
	return b.changed
}
