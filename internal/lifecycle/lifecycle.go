// Package lifecycle holds the process-wide drain state consulted by /health.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// drainStart is the unix-nano time shutdown began, 0 while serving.
var drainStart atomic.Int64

// SetShuttingDown marks the process as draining (true) or serving (false). Repeated calls with
// true keep the first start time.
func SetShuttingDown(v bool) {
	if !v {
		drainStart.Store(0)
		return
	}
	drainStart.CompareAndSwap(0, time.Now().UnixNano())
}

// IsShuttingDown reports whether the process is draining and should receive no new traffic.
func IsShuttingDown() bool {
	return drainStart.Load() != 0
}

// DrainingSince returns when shutdown began, or the zero time while serving.
func DrainingSince() time.Time {
	ns := drainStart.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
