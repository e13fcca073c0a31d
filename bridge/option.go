package bridge

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Bridge.
type Option func(b *Bridge)

// WithPolicy sets the session policy.
func WithPolicy(policy Policy) Option {
	return func(b *Bridge) {
		b.policy = policy
	}
}

// WithMaxFrameSize sets the largest accepted subprocess frame.
func WithMaxFrameSize(size int) Option {
	return func(b *Bridge) {
		if size > 0 {
			b.maxFrameSize = size
		}
	}
}

// WithQueueSize sets the per session outbound queue length.
func WithQueueSize(size int) Option {
	return func(b *Bridge) {
		if size >= 0 {
			b.queueSize = size
		}
	}
}

// WithDeliveryTimeout sets how long a broadcast session may block frame
// delivery before it is closed with ErrSessionStalled; zero disables eviction.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(b *Bridge) {
		if timeout >= 0 {
			b.deliveryTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(b *Bridge) {
		b.logger = logger.Named("bridge")
	}
}
