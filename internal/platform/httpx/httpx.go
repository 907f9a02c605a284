package httpx

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// SecureJitter returns a uniformly random duration in [0, max) drawn from
// crypto/rand. Backoff jitter feeds retry timing against a shared store, so it
// must not be predictable across workers.
func SecureJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return max / 2
	}
	n := binary.BigEndian.Uint64(buf[:])
	return time.Duration(n % uint64(max))
}

// BackoffDelay computes base*2^attempt plus secure jitter in [0, maxJitter).
// attempt is zero-based.
func BackoffDelay(base time.Duration, attempt int, maxJitter time.Duration) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d + SecureJitter(maxJitter)
}
