package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// The health handler reports shutting-down with a 503 while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not
// receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
