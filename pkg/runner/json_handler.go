package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// Message is one JSON line written by the JSONHandler.
type Message struct {
	Type      string          `json:"type"`
	Request   *domain.Request `json:"request,omitempty"`
	Event     *domain.Event   `json:"event,omitempty"`
	Direction Direction       `json:"direction,omitempty"`
	Line      string          `json:"line,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
//
// Replies are read one per line, either as a domain.Reply object or as a
// JSON string (or bare text) interpreted like terminal input.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder

	mu        sync.Mutex
	lines     chan inputResult
	startOnce sync.Once
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) emit(msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(msg)
}

func (h *JSONHandler) initPump() {
	h.startOnce.Do(func() {
		h.lines = make(chan inputResult)
		go func() {
			defer close(h.lines)
			for {
				text, err := h.Reader.ReadString('\n')
				if text != "" {
					h.lines <- inputResult{text: text}
				}
				if err != nil {
					if err != io.EOF {
						h.lines <- inputResult{err: err}
					}
					return
				}
			}
		}()
	})
}

// Prompt emits the request and decodes the next reply line.
func (h *JSONHandler) Prompt(ctx context.Context, req domain.Request) (domain.Reply, error) {
	if err := h.emit(Message{Type: "request", Request: &req}); err != nil {
		return domain.Reply{}, err
	}
	h.initPump()

	for {
		var res inputResult
		var ok bool
		select {
		case <-ctx.Done():
			return domain.Reply{}, ctx.Err()
		case res, ok = <-h.lines:
		}
		if !ok {
			return domain.Reply{}, io.EOF
		}
		if res.err != nil {
			return domain.Reply{}, res.err
		}

		reply, err := decodeReply(req, res.text)
		if err != nil {
			if emitErr := h.emit(Message{Type: "error", Message: err.Error()}); emitErr != nil {
				return domain.Reply{}, emitErr
			}
			continue
		}
		return reply, nil
	}
}

func decodeReply(req domain.Request, raw string) (domain.Reply, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "{") {
		var reply domain.Reply
		if err := json.Unmarshal([]byte(text), &reply); err != nil {
			return domain.Reply{}, fmt.Errorf("invalid reply: %w", err)
		}
		return reply, nil
	}
	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		text = val
	}
	return ParseReply(req, text)
}

func (h *JSONHandler) Event(ctx context.Context, ev domain.Event) error {
	return h.emit(Message{Type: "event", Event: &ev})
}

func (h *JSONHandler) Traffic(ctx context.Context, dir Direction, line string) error {
	return h.emit(Message{Type: "traffic", Direction: dir, Line: line})
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.emit(Message{Type: "system", Message: msg})
}
