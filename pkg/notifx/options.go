package notifx

// SubscribeOptions controls how a subscription is created.
type SubscribeOptions struct {
	// QueueSize bounds the per-subscriber buffer. Defaults to 64.
	QueueSize int
}

// Option is a functional option for Subscribe.
type Option func(*SubscribeOptions)

// WithQueueSize overrides the default bounded-queue depth.
func WithQueueSize(n int) Option {
	return func(o *SubscribeOptions) {
		o.QueueSize = n
	}
}

func applyOptions(opts []Option) SubscribeOptions {
	so := SubscribeOptions{QueueSize: 64}
	for _, o := range opts {
		o(&so)
	}
	if so.QueueSize <= 0 {
		so.QueueSize = 64
	}
	return so
}
