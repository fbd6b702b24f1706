// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// The interactive write path logs at Debug to keep keystroke handling
// cheap; lifecycle transitions and host failures log at Info and above.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Session created", zap.String("session_id", id))
//	logger.Error("Host call failed", zap.Error(err))
package logging
