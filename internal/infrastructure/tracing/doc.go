/*
Package tracing provides lightweight request tracing.

# Overview

This package tracks requests through the HTTP surface and down into
process host calls. It follows OpenTelemetry concepts but with a
minimal implementation tailored to the system's needs.

# Usage

	// Create tracer
	tracer := tracing.New("termmux", logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("key", "value")

# Trace Format

Traces use standard HTTP headers for propagation:
  - X-Trace-ID: unique identifier for the entire request flow
  - X-Span-ID: identifier for the current operation

# Performance

Spans are collected through a buffered channel (1000 spans) and
processed asynchronously; a full buffer drops spans rather than
blocking the request path.
*/
package tracing
