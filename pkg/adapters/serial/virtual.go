package serial

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// Virtual is a Port backed by a pseudo-terminal. Another program opens PeerPath and acts as the device.
type Virtual struct {
	*Port
	tty *os.File
}

// OpenVirtual allocates a pty pair. The peer side is put in raw mode so commands are not echoed back.
func OpenVirtual(opts ...Option) (*Virtual, error) {
	master, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		master.Close()
		tty.Close()
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	return &Virtual{
		Port: NewPort("virtual:"+tty.Name(), master, opts...),
		tty:  tty,
	}, nil
}

// PeerPath is the device path the other end should open.
func (v *Virtual) PeerPath() string {
	return v.tty.Name()
}

// Peer gives direct access to the device side.
func (v *Virtual) Peer() *os.File {
	return v.tty
}

// Close releases both ends.
func (v *Virtual) Close() error {
	err := v.Port.Close()
	if cerr := v.tty.Close(); err == nil {
		err = cerr
	}
	return err
}
