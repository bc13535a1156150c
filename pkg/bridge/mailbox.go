package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
	"github.com/google/uuid"
)

const (
	defaultQueueLimit = 1024
	resolvedMemory    = 256
)

type slot struct {
	req     domain.Request
	reply   chan domain.Reply
	settled  chan struct{}
	open     bool
	answered bool
}

// Mailbox is a thread-safe request/reply channel between an executor and a front end.
type Mailbox struct {
	mu            sync.Mutex
	pending       map[string]*slot
	resolved      map[string]bool
	resolvedOrder []string
	closed        bool
	gone          chan struct{}

	requests *queue[domain.Request]
	events   *queue[domain.Event]
	logger   *slog.Logger
	newID    func() string
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mailbox) {
		m.logger = logger
	}
}

// WithIDGenerator replaces the UUID request ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Mailbox) {
		m.newID = fn
	}
}

// New creates an open mailbox. Call Close when the front end goes away.
func New(opts ...Option) *Mailbox {
	m := &Mailbox{
		pending:  make(map[string]*slot),
		resolved: make(map[string]bool),
		gone:     make(chan struct{}),
		requests: newQueue[domain.Request](defaultQueueLimit),
		events:   newQueue[domain.Event](defaultQueueLimit),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Post registers req and announces it on Requests.
func (m *Mailbox) Post(_ context.Context, req domain.Request) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", domain.ErrUIUnavailable
	}
	req.ID = m.newID()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	m.pending[req.ID] = &slot{
		req:     req,
		reply:   make(chan domain.Reply, 1),
		settled: make(chan struct{}),
		open:    true,
	}
	m.mu.Unlock()

	m.logger.Debug("ui request posted", "id", req.ID, "kind", req.Kind)
	m.requests.push(req)
	return req.ID, nil
}

// Await blocks until id is answered. If ctx ends first the request is withdrawn and the
// context's cause is returned.
func (m *Mailbox) Await(ctx context.Context, id string) (domain.Reply, error) {
	m.mu.Lock()
	s, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return domain.Reply{}, fmt.Errorf("%w: %s", domain.ErrUnknownRequest, id)
	}

	defer m.forget(id)
	select {
	case r := <-s.reply:
		return r, nil
	case <-ctx.Done():
		return domain.Reply{}, context.Cause(ctx)
	case <-m.gone:
		return domain.Reply{}, domain.ErrUIUnavailable
	}
}

// Reply answers a pending request. A second reply for the same id returns domain.ErrAlreadyAnswered;
// a reply to a request whose awaiter gave up returns domain.ErrWithdrawn.
func (m *Mailbox) Reply(id string, reply domain.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.pending[id]
	if !ok {
		if answered, done := m.resolved[id]; done {
			return lateReply(answered)
		}
		return fmt.Errorf("%w: %s", domain.ErrUnknownRequest, id)
	}
	if !s.open {
		return lateReply(s.answered)
	}
	if err := validateReply(s.req, reply); err != nil {
		return err
	}

	s.reply <- reply
	s.answered = true
	m.settleLocked(id)
	m.logger.Debug("ui request answered", "id", id, "action", reply.Action)
	return nil
}

// Notify queues a status event. It never blocks.
func (m *Mailbox) Notify(_ context.Context, e domain.Event) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	m.events.push(e)
}

// Requests delivers posted requests in order. It is closed by Close.
func (m *Mailbox) Requests() <-chan domain.Request {
	return m.requests.out
}

// Events delivers status events in order. It is closed by Close.
func (m *Mailbox) Events() <-chan domain.Event {
	return m.events.out
}

// DroppedEvents reports how many events were discarded because nobody was reading Events.
func (m *Mailbox) DroppedEvents() int {
	return m.events.droppedCount()
}

// Pending returns the unanswered requests, oldest first.
func (m *Mailbox) Pending() []domain.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Request, 0, len(m.pending))
	for _, s := range m.pending {
		if s.open {
			out = append(out, s.req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Settled returns a channel closed once id is answered, withdrawn, or the mailbox is closed.
// Unknown ids yield an already closed channel.
func (m *Mailbox) Settled(id string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.pending[id]; ok && s.open {
		return s.settled
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Close marks the front end as gone. Pending and future requests resolve to domain.ErrUIUnavailable.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.gone)
	for id := range m.pending {
		m.settleLocked(id)
	}
	m.mu.Unlock()

	m.requests.close()
	m.events.close()
	return nil
}

// forget drops a slot once its awaiter has returned, remembering the id so late replies are rejected.
func (m *Mailbox) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settleLocked(id)
	answered := false
	if s, ok := m.pending[id]; ok {
		answered = s.answered
	}
	delete(m.pending, id)

	m.resolved[id] = answered
	m.resolvedOrder = append(m.resolvedOrder, id)
	if len(m.resolvedOrder) > resolvedMemory {
		delete(m.resolved, m.resolvedOrder[0])
		m.resolvedOrder = m.resolvedOrder[1:]
	}
}

// settleLocked closes a slot to further replies.
func (m *Mailbox) settleLocked(id string) {
	s, ok := m.pending[id]
	if !ok || !s.open {
		return
	}
	s.open = false
	close(s.settled)
}

func lateReply(answered bool) error {
	if answered {
		return domain.ErrAlreadyAnswered
	}
	return domain.ErrWithdrawn
}

func validateReply(req domain.Request, r domain.Reply) error {
	if r.Action == domain.ReplyCancel {
		return nil
	}
	ok := false
	switch req.Kind {
	case domain.RequestDialog:
		ok = r.Action == domain.ReplyContinue || r.Action == domain.ReplyEnd
	case domain.RequestSingleChoice:
		ok = r.Action == domain.ReplyChoose && r.Choice >= 0 && r.Choice < len(req.Options)
	case domain.RequestMultiChoice:
		ok = r.Action == domain.ReplyContinue ||
			(r.Action == domain.ReplyChoose && r.Choice >= 0 && r.Choice < len(req.Options))
	case domain.RequestText:
		ok = r.Action == domain.ReplySubmit
	}
	if !ok {
		return fmt.Errorf("%w: %s for %s request", domain.ErrInvalidReply, r.Action, req.Kind)
	}
	return nil
}
