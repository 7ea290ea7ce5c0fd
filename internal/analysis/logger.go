// Package analysis runs analysis sessions: it wires a capture producer, the
// pipeline, the data store and the optional HTTP surfaces together and drives
// the capture loop until the input ends or the session is cancelled.
package analysis

import "github.com/tphakala/speechscope/internal/logger"

// GetLogger returns the analysis logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}
