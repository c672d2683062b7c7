package service

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time and the timer used for reply latency.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Random supplies the randomness behind reply latency and phrase choice.
type Random interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }

// After waits for d on a runtime timer.
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemRandom uses the process-wide math/rand source, which is safe for
// concurrent use.
type SystemRandom struct{}

func (SystemRandom) Float64() float64 { return rand.Float64() }

func (SystemRandom) Intn(n int) int { return rand.Intn(n) }

// ReplyDelay describes the simulated thinking time: Min plus a uniformly
// distributed fraction of Spread.
type ReplyDelay struct {
	Min    time.Duration
	Spread time.Duration
}

// DefaultReplyDelay waits between one and three seconds.
var DefaultReplyDelay = ReplyDelay{Min: time.Second, Spread: 2 * time.Second}

// Pick returns a delay for the given random fraction in [0, 1).
func (d ReplyDelay) Pick(fraction float64) time.Duration {
	if d.Min < 0 {
		d.Min = 0
	}
	if d.Spread <= 0 {
		return d.Min
	}
	return d.Min + time.Duration(fraction*float64(d.Spread))
}

// NewID returns a time-ordered UUIDv7. The random tail keeps ids unique even
// when many are minted within the same millisecond.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
