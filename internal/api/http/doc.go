// Package http exposes the session multiplexer's REST surface: session
// lifecycle, input/resize submission, directory changes, shell profile
// discovery, and health. Streaming output lives in the ws package.
package http
