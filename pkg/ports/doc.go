/*
Package ports defines the driven ports (interfaces) of the macro engine.

These interfaces decouple the executor from the serial hardware, the front end and the
storage backends, so each can be replaced by an adapter or a test double.

# Key Interfaces

  - Transport: writes commands and delivers received lines.
  - UIBridge: escalates decisions to a front end and carries status notifications.
  - RunStore: persists RunRecords.
  - TransportLocker: guarantees at most one active run per transport across instances.
  - MacroSource: resolves macros by name.
*/
package ports
