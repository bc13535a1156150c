package http

import (
	"log/slog"
	"sync"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// StreamManager fans run events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Event]struct{} // run ID ("" for all) -> channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan domain.Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for events of runID, or of every run when runID is empty.
func (sm *StreamManager) Subscribe(runID string) (<-chan domain.Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.Event, 64)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan domain.Event]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[runID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, runID)
				}
			}
		})
	}
}

// Broadcast delivers ev to matching subscribers. Slow subscribers lose events.
func (sm *StreamManager) Broadcast(ev domain.Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []string{"", ev.RunID} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- ev:
			default:
				sm.logger.Warn("SSE: Client buffer full, dropping event", "run", ev.RunID, "type", ev.Type)
			}
		}
		if ev.RunID == "" {
			break
		}
	}
}

// Pump broadcasts every event from ch until it is closed.
func (sm *StreamManager) Pump(ch <-chan domain.Event) {
	for ev := range ch {
		sm.Broadcast(ev)
	}
}
