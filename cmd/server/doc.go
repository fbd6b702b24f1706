// Package main is the entry point for the termmux server.
//
// The server multiplexes interactive shell sessions between UI clients
// and a process host:
//
//	UI (REST + WebSocket) → termmux → process host (local PTYs or a
//	                                  remote host daemon)
//
// It provides:
//   - REST API for session lifecycle (create, kill, resize, cd)
//   - WebSocket streaming of terminal output and lifecycle events
//   - Keystroke coalescing and resize debouncing in front of the host
//   - Prometheus metrics and rate limiting
//
// Configuration comes from environment variables (12-factor), with CLI
// flags overriding them and sane defaults for development.
//
// Usage:
//
//	# Local PTY host
//	./server -port 8090
//
//	# Remote host daemon
//	./server -host-mode remote -host-addr ws://host:9180/host
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown (pending writes are flushed)
package main
