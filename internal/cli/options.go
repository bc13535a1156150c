package cli

import (
	"github.com/DJA-prog/serialmacro/internal/config"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Settings *config.Settings
	Macro    string // name of a known macro or path to a macro file
	Simulate string // simulator script replacing the serial port
	Headless bool
	JSON     bool
	Debug    bool
}

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Settings *config.Settings
	Simulate string
	Debug    bool
}

// MCPOptions configures the MCP server.
type MCPOptions struct {
	Settings  *config.Settings
	Simulate  string
	Transport string // stdio or sse
	Port      int
	Debug     bool
}
