package serial

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/term"
)

const readChunk = 4096

// Port is a transport over a byte stream.
type Port struct {
	Hub

	name   string
	rw     io.ReadWriteCloser
	logger *slog.Logger

	wmu     sync.Mutex
	once    sync.Once
	done    chan struct{}
	readErr error
}

// Option configures a Port.
type Option func(*Port)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Port) {
		p.logger = logger
	}
}

// NewPort starts reading rw and publishing its lines. The port owns rw from now on.
func NewPort(name string, rw io.ReadWriteCloser, opts ...Option) *Port {
	p := &Port{
		name:   name,
		rw:     rw,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.readLoop()
	return p
}

// Open opens a serial device in raw mode at the given baud rate.
func Open(path string, baud int, opts ...Option) (*Port, error) {
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		if _, err := term.MakeRaw(fd); err != nil {
			f.Close()
			return nil, fmt.Errorf("raw mode %s: %w", path, err)
		}
		if err := setBaud(fd, baud); err != nil {
			f.Close()
			return nil, fmt.Errorf("baud rate %s: %w", path, err)
		}
	}
	return NewPort(path, f, opts...), nil
}

// Name identifies the port, typically its device path.
func (p *Port) Name() string {
	return p.name
}

// Write sends b to the device. Concurrent writers are serialized.
func (p *Port) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, fmt.Errorf("port %s closed", p.name)
	default:
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.rw.Write(b)
}

// Done is closed when the read side ends, through Close or a device error.
func (p *Port) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that ended the read loop, if any.
func (p *Port) Err() error {
	<-p.done
	return p.readErr
}

// Close releases the device.
func (p *Port) Close() error {
	var err error
	p.once.Do(func() {
		err = p.rw.Close()
	})
	return err
}

func (p *Port) readLoop() {
	defer close(p.done)

	buf := make([]byte, readChunk)
	var pending []byte
	for {
		n, err := p.rw.Read(buf)
		if n > 0 {
			var lines []string
			lines, pending = splitLines(append(pending, buf[:n]...))
			for _, line := range lines {
				p.Publish(line)
			}
		}
		if err != nil {
			if rest := strings.TrimRight(string(pending), "\r"); rest != "" {
				p.Publish(rest)
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.readErr = err
				p.logger.Warn("serial read stopped", "port", p.name, "err", err)
			}
			return
		}
	}
}
