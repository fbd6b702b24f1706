// Package mux implements the terminal session multiplexing core: it
// manages interactive shell sessions fronted by reactive clients and
// mediates all input/output between consumers and a pluggable process
// host.
//
// Three constraints shape the design:
//   - Perceived latency: keystrokes must reach the host fast enough that
//     echo feels instantaneous.
//   - Bounded call volume: every host call crosses a process/IPC
//     boundary, so rapid writes are coalesced (~16ms windows) and resize
//     bursts are debounced (~150ms trailing).
//   - Fan-out: host events are delivered to every subscriber, with one
//     subscriber's failure never affecting the others.
//
// The Service is an explicit object passed by reference, not a hidden
// module singleton; Initialize and Destroy are idempotent so tests can
// cycle instances freely. Timers run on the Clock abstraction so tests
// use a virtual clock instead of wall-time sleeps.
package mux
