package socket

import (
	"time"
)

// rampAttempts is the number of linearly increasing delays before the
// backoff jumps to the ceiling.
const rampAttempts = 5

// Delay returns the reconnection delay for the given attempt (1-based):
// attempt*base for the first rampAttempts tries, the ceiling afterwards.
// With the defaults (base 1s, max 30s) the sequence is 1s, 2s, 3s, 4s,
// 5s, 30s, 30s, ...
func Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > rampAttempts {
		return max
	}
	d := time.Duration(attempt) * base
	if d > max {
		return max
	}
	return d
}
