/*
Package loader reads macros from YAML.

A macro file names the macro and lists its steps. Each step is a single-key mapping:

	name: modem-check
	steps:
	  - input: AT
	  - delay: 250
	  - output:
	      expected: OK
	      timeout: 1000
	      substring_match: true
	      success: Continue
	      fail: Exit
	  - dialog_wait: { message: "Insert the SIM card" }
	  - menu_single: { options: [ATI, AT+GMR] }
	  - menu_multi: { options: [AT+CSQ, AT+COPS?] }

Outcomes are Continue, Ignore, Exit, DialogForCommand, DialogAndWait or {input: <command>}.
Every invalid step in a file is reported, not only the first.
*/
package loader
