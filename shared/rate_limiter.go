package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// staleKeySweepSize bounds how many keys are kept before idle entries are swept
const staleKeySweepSize = 10000

// SubmissionRateLimiter enforces a minimum delay between submissions from the same key
type SubmissionRateLimiter struct {
	minimumDelay  time.Duration        // Minimum delay between submissions per key
	lastSeen      map[string]time.Time // Last accepted submission per key
	mutex         sync.Mutex           // Ensures thread-safe access
	requestCount  int64                // Total number of submissions accepted
	rejectedCount int64                // Total number of submissions rejected
	now           func() time.Time
}

// NewSubmissionRateLimiter creates a limiter; a zero delay accepts everything
func NewSubmissionRateLimiter(minimumDelay time.Duration) *SubmissionRateLimiter {
	return &SubmissionRateLimiter{
		minimumDelay: minimumDelay,
		lastSeen:     make(map[string]time.Time),
		now:          time.Now,
	}
}

// Allow records a submission for key and reports whether it is accepted.
// When rejected, the returned duration is how long the caller should wait.
func (limiter *SubmissionRateLimiter) Allow(key string) (bool, time.Duration) {
	if limiter.minimumDelay <= 0 {
		return true, 0
	}

	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	now := limiter.now()
	if last, ok := limiter.lastSeen[key]; ok {
		if elapsed := now.Sub(last); elapsed < limiter.minimumDelay {
			limiter.rejectedCount++
			remaining := limiter.minimumDelay - elapsed

			logrus.WithFields(logrus.Fields{
				"component":       "SubmissionRateLimiter",
				"key":             key,
				"elapsed_time":    elapsed,
				"remaining_delay": remaining,
			}).Debug("Submission rejected by rate limit")

			return false, remaining
		}
	}

	if len(limiter.lastSeen) >= staleKeySweepSize {
		limiter.sweepLocked(now)
	}
	limiter.lastSeen[key] = now
	limiter.requestCount++
	return true, 0
}

// sweepLocked drops keys whose delay has already elapsed
func (limiter *SubmissionRateLimiter) sweepLocked(now time.Time) {
	for key, last := range limiter.lastSeen {
		if now.Sub(last) >= limiter.minimumDelay {
			delete(limiter.lastSeen, key)
		}
	}
}

// GetRequestCount returns the total number of accepted submissions
func (limiter *SubmissionRateLimiter) GetRequestCount() int64 {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.requestCount
}

// GetRejectedCount returns the total number of rejected submissions
func (limiter *SubmissionRateLimiter) GetRejectedCount() int64 {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.rejectedCount
}
