// Package monitoring provides Prometheus metrics for the terminal
// multiplexer: HTTP traffic, host call volume and latency, session
// lifecycle counts, write coalescing and resize debouncing efficiency,
// event fan-out, and WebSocket connections.
//
// The coalescer and debouncer metrics exist to make the batching layer
// observable: comparing writes_buffered_total against flushes_total shows
// how many host round-trips the 16ms window saves under real typing.
package monitoring
