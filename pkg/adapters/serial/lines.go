package serial

import (
	"sync"

	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// Hub fans received lines out to subscribers in arrival order.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]ports.LineHandler
	next int
}

// Subscribe registers h and returns a function that removes it.
func (h *Hub) Subscribe(fn ports.LineHandler) func() {
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[int]ports.LineHandler)
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers line to every subscriber.
func (h *Hub) Publish(line string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.subs {
		fn(line)
	}
}

// splitLines cuts complete lines off buffer and returns them with the unterminated remainder.
// LF, CR and CRLF all end a line. A CR at the very end is held back in case LF follows.
func splitLines(buffer []byte) ([]string, []byte) {
	var lines []string
	start := 0
	for i := 0; i < len(buffer); i++ {
		switch buffer[i] {
		case '\n':
			lines = append(lines, string(buffer[start:i]))
			start = i + 1
		case '\r':
			if i+1 == len(buffer) {
				return lines, buffer[start:]
			}
			lines = append(lines, string(buffer[start:i]))
			if buffer[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	return lines, buffer[start:]
}
