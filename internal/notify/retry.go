package notify

import (
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig tunes WithConstructRetry's backoff between attempts.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Growth      float64
}

// DefaultRetryConfig is the backoff every sink constructor starts from
// unless it has a reason to differ: three attempts, doubling from two
// seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, Growth: 2}
}

// WithConstructRetry runs op up to cfg.MaxAttempts times, multiplying the
// delay between attempts by cfg.Growth, logging every retry through logger under
// label. It exists because every remote-API sink constructor (Telegram,
// and any future one) hits the same shape of transient failure on the
// initial handshake and would otherwise each reimplement this loop.
func WithConstructRetry(cfg RetryConfig, logger *slog.Logger, label string, op func() error) error {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.BaseDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt < cfg.MaxAttempts {
			logger.Warn(label+": connection failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("maxAttempts", cfg.MaxAttempts),
				slog.Duration("retryIn", delay),
				slog.Any("error", err),
			)
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * cfg.Growth)
		}
	}
	return fmt.Errorf("%s: after %d attempts: %w", label, cfg.MaxAttempts, err)
}
