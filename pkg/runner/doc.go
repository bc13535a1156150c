/*
Package runner drives macro runs from a terminal or a pipe.

It acts as the bridge between the engine and a human. The runner reads prompts
from the engine's mailbox and hands them to a pluggable IOHandler, shows run
events and device traffic, and turns Ctrl+C into a stop request.

# Key Components

  - Runner: the loop that forwards requests, events and interrupts for one run.
  - IOHandler: decouples how prompts are presented and answered.
  - TextHandler: interactive terminal usage.
  - JSONHandler: JSON-Lines for scripts and wrappers.

# Usage

	r := runner.NewRunner(
		runner.WithEngine(engine),
		runner.WithTraffic(port),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	rec, err := r.Run(ctx, "modem-check")
	if err != nil {
		log.Fatal(err)
	}
*/
package runner
