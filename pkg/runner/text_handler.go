package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// TextHandler implements the standard line-oriented terminal interface.
type TextHandler struct {
	Reader    *bufio.Reader
	Writer    io.Writer
	Renderer  ContentRenderer
	Formatter func(string) string

	mu        sync.Mutex // serializes writes from the event and traffic paths
	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the dialog message renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerFormatter transforms traffic lines before display, e.g. to reveal hidden characters.
func WithTextHandlerFormatter(fn func(string) string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Formatter = fn
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so a prompt can be abandoned when its context ends.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
			time.Sleep(50 * time.Millisecond)
		}
	}
}

func (h *TextHandler) readLine(ctx context.Context) (string, error) {
	h.initPump()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-h.inputChan:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimRight(res.text, "\r\n"), nil
	}
}

func (h *TextHandler) printf(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.Writer, format, args...)
}

// Prompt renders req and reads answers until one parses.
func (h *TextHandler) Prompt(ctx context.Context, req domain.Request) (domain.Reply, error) {
	h.printf("%s", h.describe(req))
	for {
		h.printf("> ")
		line, err := h.readLine(ctx)
		if err != nil {
			return domain.Reply{}, err
		}
		reply, err := ParseReply(req, line)
		if err != nil {
			h.printf("Error: %v. Please try again.\n", err)
			continue
		}
		return reply, nil
	}
}

func (h *TextHandler) describe(req domain.Request) string {
	var b strings.Builder
	switch req.Kind {
	case domain.RequestDialog:
		msg := req.Message
		if msg == "" {
			msg = "Continue?"
		}
		if h.Renderer != nil {
			if rendered, err := h.Renderer(msg); err == nil {
				msg = rendered
			}
		}
		fmt.Fprintln(&b, strings.TrimSpace(msg))
		def := req.Default
		if def == "" {
			def = domain.DialogContinue
		}
		fmt.Fprintf(&b, "[c]ontinue / [e]nd (default: %s)\n", def)
	case domain.RequestSingleChoice, domain.RequestMultiChoice:
		for i, opt := range req.Options {
			fmt.Fprintf(&b, "  %d) %s\n", i+1, opt)
		}
		if req.Kind == domain.RequestMultiChoice {
			fmt.Fprintln(&b, "  0) continue")
		}
		fmt.Fprintln(&b, "Select a command (q to cancel):")
	case domain.RequestText:
		msg := req.Message
		if msg == "" {
			msg = "Enter a command to send:"
		}
		fmt.Fprintf(&b, "%s (empty to cancel)\n", msg)
	}
	return b.String()
}

// Event prints a one-line summary. Sent commands are shown as traffic.
func (h *TextHandler) Event(ctx context.Context, ev domain.Event) error {
	switch ev.Type {
	case domain.EventCommandSent:
		return h.Traffic(ctx, Sent, ev.Command)
	case domain.EventStepResult:
		if ev.StepKind == domain.StepOutput {
			h.printf("[step %d] output %s (%s)\n", ev.StepIndex+1, ev.Result, ev.Elapsed.Round(time.Millisecond))
		}
	case domain.EventMacroCompleted:
		h.printf("[%s] completed\n", ev.Macro)
	case domain.EventMacroCancelled, domain.EventMacroFailed:
		verb := "cancelled"
		if ev.Type == domain.EventMacroFailed {
			verb = "failed"
		}
		h.printf("[%s] %s at step %d: %s\n", ev.Macro, verb, ev.StepIndex+1, ev.Reason)
	}
	return nil
}

// Traffic prints "< cmd" for sent commands and "> line" for received lines.
func (h *TextHandler) Traffic(ctx context.Context, dir Direction, line string) error {
	prefix := "> "
	if dir == Sent {
		prefix = "< "
	}
	if h.Formatter != nil {
		line = h.Formatter(line)
	}
	h.printf("%s%s\n", prefix, line)
	return nil
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	h.printf("\n[System] %s\n", msg)
	return nil
}
