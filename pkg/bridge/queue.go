package bridge

import "sync"

// queue delivers pushed values in order on a channel without ever blocking the pusher.
// When more than limit values are waiting, the oldest are dropped.
type queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped int
	signal  chan struct{}
	out     chan T
	quit    chan struct{}
	once    sync.Once
}

func newQueue[T any](limit int) *queue[T] {
	q := &queue[T]{
		limit:  limit,
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		quit:   make(chan struct{}),
	}
	go q.pump()
	return q
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	if len(q.items) >= q.limit {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue[T]) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.signal:
				continue
			case <-q.quit:
				return
			}
		}
		v := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- v:
		case <-q.quit:
			return
		}
	}
}

func (q *queue[T]) droppedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *queue[T]) close() {
	q.once.Do(func() { close(q.quit) })
}
