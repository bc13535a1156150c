/*
Package serialmacro runs scripted command/response sessions against serial devices.

A macro is an ordered list of steps: write a command, wait, look for expected
output, or hand a decision to a human. The Engine executes one macro at a time
per transport, reacts to output matches with configured outcomes, and can be
stopped at any point without further writes to the device.

# Concept

The engine owns the control flow. Everything it needs from the outside is a
port: a Transport to write commands and receive lines, a UI bridge to answer
prompts, and optional stores for run history. Front ends (the CLI, the HTTP
server, the MCP server) only render requests and post replies.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/DJA-prog/serialmacro"
		"github.com/DJA-prog/serialmacro/pkg/adapters/serial"
	)

	func main() {
		port, err := serial.Open("/dev/ttyUSB0", 115200)
		if err != nil {
			log.Fatal(err)
		}
		defer port.Close()

		eng, err := serialmacro.New(port)
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		// Answer prompts from eng.Mailbox().Requests() in another goroutine.

		ctx := context.Background()
		if _, err := eng.Start(ctx, "modem-check"); err != nil {
			log.Fatal(err)
		}
		rec, err := eng.Wait(ctx)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("%s: %s", rec.Macro, rec.State)
	}
*/
package serialmacro
