package runtime

import (
	"strings"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// MatchLine reports whether any line satisfies expected under mode.
// Lines are trimmed of surrounding whitespace before comparison. An empty expected
// matches any line in substring mode and only blank lines in full-line mode.
func MatchLine(lines []string, expected string, mode domain.MatchMode) bool {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch mode {
		case domain.MatchFullLine:
			if line == expected {
				return true
			}
		default:
			if strings.Contains(line, expected) {
				return true
			}
		}
	}
	return false
}
