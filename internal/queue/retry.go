package queue

import (
	"time"
)

// RetryConfig defines exponential backoff for failed jobs
type RetryConfig struct {
	MaxRetries      int           // maximum number of attempts before a job is marked failed
	InitialInterval time.Duration // delay before the first retry
	MaxInterval     time.Duration // ceiling for the backoff
	Multiplier      float64       // backoff multiplier per retry
}

// DefaultRetryConfig returns the standard retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      5,
		InitialInterval: 30 * time.Second,
		MaxInterval:     time.Hour,
		Multiplier:      2.0,
	}
}

// Backoff returns the delay before the given retry attempt (1-based)
func (c RetryConfig) Backoff(retryCount int) time.Duration {
	interval := c.InitialInterval
	for i := 1; i < retryCount; i++ {
		interval = time.Duration(float64(interval) * c.Multiplier)
		if interval >= c.MaxInterval {
			return c.MaxInterval
		}
	}
	if interval > c.MaxInterval {
		return c.MaxInterval
	}
	return interval
}
