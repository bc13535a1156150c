package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// StopController is a stop flag shared by the run's initiator and its executor.
// Every method takes the lock exactly once and never calls another locking method while holding it.
type StopController struct {
	mu      sync.Mutex
	cond    *sync.Cond
	stopped bool
	done    chan struct{}
}

// NewStopController returns a controller in the not-stopped state.
func NewStopController() *StopController {
	s := &StopController{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// RequestStop sets the flag and wakes every waiter. It is idempotent and never blocks on the executor.
func (s *StopController) RequestStop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.done)
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Stopped reports whether a stop has been requested.
func (s *StopController) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Done returns a channel closed when a stop is requested.
func (s *StopController) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Reset clears the flag so the controller can serve another run.
// It must not be called while a run is using the controller.
func (s *StopController) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.stopped = false
		s.done = make(chan struct{})
	}
}

// Sleep waits for d or until a stop is requested, whichever is first.
// It returns false if the wait ended because of a stop.
func (s *StopController) Sleep(d time.Duration) bool {
	expired := false
	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		expired = true
		s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer t.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.stopped && !expired {
		s.cond.Wait()
	}
	return !s.stopped
}

// Context derives a context that is cancelled with domain.ErrStopped as cause when a stop is requested.
func (s *StopController) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	done := s.Done()
	go func() {
		select {
		case <-done:
			cancel(domain.ErrStopped)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}
