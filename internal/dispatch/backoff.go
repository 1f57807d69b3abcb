package dispatch

import (
	"math"
	"math/rand"
	"time"
)

const (
	backoffInitial    = 100 * time.Millisecond
	backoffMultiplier = 2.0
	backoffCap        = 5 * time.Second
	backoffJitterFrac = 0.20
)

// nextBackoff returns the delay before retry attempt n (1-indexed: the delay
// before the 1st retry, after the 1st failure): initial 100ms, multiplier
// 2, cap 5s, up to 20% jitter.
func nextBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(backoffInitial) * math.Pow(backoffMultiplier, float64(attempt-1))
	if raw > float64(backoffCap) {
		raw = float64(backoffCap)
	}
	jitter := raw * backoffJitterFrac * rand.Float64()
	return time.Duration(raw + jitter)
}
