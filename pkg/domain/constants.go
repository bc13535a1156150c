package domain

import (
	"fmt"
	"strings"
)

// LineEnding is appended to every command written to a transport.
type LineEnding string

const (
	LineEndingLN   LineEnding = "LN"
	LineEndingCR   LineEnding = "CR"
	LineEndingCRLN LineEnding = "CRLN"
	LineEndingNUL  LineEnding = "NUL"
)

// DefaultLineEnding matches what most modems and shells expect.
const DefaultLineEnding = LineEndingLN

// Bytes returns the terminator for the line ending.
func (l LineEnding) Bytes() []byte {
	switch l {
	case LineEndingCR:
		return []byte("\r")
	case LineEndingCRLN:
		return []byte("\r\n")
	case LineEndingNUL:
		return []byte{0}
	default:
		return []byte("\n")
	}
}

// ParseLineEnding accepts the names used in settings files, case-insensitively.
func ParseLineEnding(s string) (LineEnding, error) {
	switch LineEnding(strings.ToUpper(strings.TrimSpace(s))) {
	case "", LineEndingLN:
		return LineEndingLN, nil
	case LineEndingCR:
		return LineEndingCR, nil
	case LineEndingCRLN, "CRLF":
		return LineEndingCRLN, nil
	case LineEndingNUL:
		return LineEndingNUL, nil
	}
	return "", fmt.Errorf("unknown line ending %q", s)
}

// Timing limits for steps.
const (
	MaxDelayMS = 60000
)
