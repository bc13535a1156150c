package ports

import "io"

// LineHandler receives one line of device output, without its terminator.
// Handlers are called from the transport's receive goroutine in arrival order.
type LineHandler func(line string)

// Transport is the connection to a serial device.
// Opening, closing and reconnecting are the owner's concern, not the executor's.
type Transport interface {
	io.Writer

	// Subscribe registers h for every line received from now on.
	// The returned function removes the subscription and is safe to call more than once.
	Subscribe(h LineHandler) (unsubscribe func())
}
