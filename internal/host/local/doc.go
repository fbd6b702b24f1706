// Package local provides an in-process process host backed by creack/pty.
//
// It implements the mux.Host contract directly: shells are spawned on a
// PTY, output is read continuously and fanned into the data channel, and
// process exit is observed by a monitor goroutine that drives the
// state/exit/error channels. Session ids are host-assigned UUIDs.
//
// Event ordering per session follows the contract: the readiness state
// event is emitted from the reader goroutine before any data, and events
// are dispatched synchronously so listeners see them one at a time.
package local
