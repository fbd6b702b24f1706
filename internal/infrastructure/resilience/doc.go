// Package resilience provides a circuit breaker for process host calls.
//
// The remote host sits across an IPC boundary; when it is down every call
// pays a full dial/timeout cost. The breaker opens after a run of
// consecutive failures, fails fast while open, and probes with a limited
// number of requests in half-open state before closing again.
package resilience
