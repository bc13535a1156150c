package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/DJA-prog/serialmacro/internal/config"
	"github.com/DJA-prog/serialmacro/pkg/adapters/serial"
	"github.com/DJA-prog/serialmacro/pkg/ports"
)

// ErrNoPort is returned when neither a port, a virtual port nor a simulator script is configured.
var ErrNoPort = errors.New("no serial port configured (use --port, --virtual or --simulate)")

// openedTransport is a transport plus what the user needs to know about it.
type openedTransport struct {
	ports.Transport
	// Peer is the device path of a virtual port, empty otherwise.
	Peer  string
	close func() error
}

// Name reports the underlying transport's name so runs are locked per device.
func (t *openedTransport) Name() string {
	if named, ok := t.Transport.(interface{ Name() string }); ok {
		return named.Name()
	}
	return ""
}

func (t *openedTransport) Close() error {
	if t.close == nil {
		return nil
	}
	return t.close()
}

// openTransport picks the transport in order: simulator script, virtual port, device.
func openTransport(s *config.Settings, simulate string, logger *slog.Logger) (*openedTransport, error) {
	switch {
	case simulate != "":
		sim, err := serial.LoadScript(simulate)
		if err != nil {
			return nil, err
		}
		return &openedTransport{Transport: sim, close: sim.Close}, nil

	case s.Serial.Virtual:
		v, err := serial.OpenVirtual(serial.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("virtual port: %w", err)
		}
		return &openedTransport{Transport: v, Peer: v.PeerPath(), close: v.Close}, nil

	case s.Serial.Port != "":
		p, err := serial.Open(s.Serial.Port, s.Serial.BaudRate, serial.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		logger.Info("Serial port opened", "port", s.Serial.Port, "baud", s.Serial.BaudRate)
		return &openedTransport{Transport: p, close: p.Close}, nil
	}
	return nil, ErrNoPort
}
