/*
Package session guards transports and records run summaries.

A Manager grants at most one active run per transport key. The guard is local
to the process and, when a ports.TransportLocker is configured, shared across
processes. Run records are written through a ports.RunStore with per-run
serialization so concurrent updates for the same run never interleave.
*/
package session
