package outbox

import "time"

// Backoff returns the retry delay for an event that has failed attempts
// times: base doubled per attempt, capped at max. Attempt 0 gets the base
// delay.
func Backoff(attempts int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if max < base {
		max = base
	}

	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= max || delay < 0 {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
