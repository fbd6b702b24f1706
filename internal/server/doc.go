// Package server wires configuration, logging, metrics, the process
// host, the session multiplexer, and the HTTP/WebSocket surfaces into
// one runnable unit.
package server
