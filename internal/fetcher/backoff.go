package fetcher

import (
	"math/rand/v2"
	"time"
)

// backoff yields the retry delay schedule: the base delay doubled after each
// call, capped at max, plus jitter.
type backoff struct {
	delay  time.Duration
	max    time.Duration
	jitter func(d time.Duration) time.Duration
}

func newBackoff(base, max time.Duration, jitter func(d time.Duration) time.Duration) *backoff {
	if jitter == nil {
		jitter = defaultJitter
	}
	return &backoff{delay: base, max: max, jitter: jitter}
}

// next returns the delay before the upcoming retry and advances the schedule.
func (b *backoff) next() time.Duration {
	d := b.delay
	if d > b.max {
		d = b.max
	}
	if b.delay < b.max {
		b.delay *= 2
	}
	return d + b.jitter(d)
}

// defaultJitter adds up to 20% of d.
func defaultJitter(d time.Duration) time.Duration {
	n := int64(d) / 5
	if n <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(n))
}
