// Package ws streams terminal session events to UI clients over
// WebSocket and accepts their input messages.
//
// One connection carries all sessions: outbound frames are tagged with
// the session id, and inbound write/resize frames address a session the
// same way. Output goes through a per-connection send queue so a slow
// client never blocks event dispatch; when the queue backs up, frames
// for that client are dropped.
package ws
