/*
Package runtime drives macros against a transport.

An Executor runs one macro at a time on its own goroutine. It feeds received lines into a
SessionBuffer, matches Output expectations with MatchLine, escalates decisions through a
ports.UIBridge and observes a StopController at every suspension point.

Cancellation is cooperative. Once a stop is observed the executor writes nothing more and
emits exactly one terminal notification.
*/
package runtime
