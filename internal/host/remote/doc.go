// Package remote implements the mux.Host contract over a WebSocket
// connection to an out-of-process host.
//
// The wire protocol is JSON envelopes. Commands carry a request id and
// are matched to their responses by that id; unsolicited event
// envelopes (data/state/exit/error) are fanned out to registered
// listeners. Host calls go through a circuit breaker so a wedged
// remote host fails fast instead of piling up blocked callers.
package remote
