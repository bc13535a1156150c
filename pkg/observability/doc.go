/*
Package observability provides lifecycle hooks for monitoring macro runs.

Metrics exposes Prometheus collectors fed from executor events, and LogHooks
writes the same events to a structured logger. Both return domain.LifecycleHooks
and can be combined with domain.ComposeHooks.
*/
package observability
