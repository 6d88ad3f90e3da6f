package disk

import "time"

// RemovalListener is called with the key of every entry the store drops on its own,
// by eviction, expiry or a vanished file. It runs with the store locked and must not
// call back into the store.
type RemovalListener func(key string)

type storeOptions struct {
	clock           func() time.Time
	removalListener RemovalListener
}

// Option configures a Store
type Option func(options *storeOptions)

// WithClock sets the time source used for expiry and access times
func WithClock(clock func() time.Time) Option {
	return func(options *storeOptions) {
		if clock != nil {
			options.clock = clock
		}
	}
}

// WithRemovalListener sets the listener notified of entries dropped by the store itself
func WithRemovalListener(listener RemovalListener) Option {
	return func(options *storeOptions) {
		options.removalListener = listener
	}
}

func newStoreOptions(options []Option) *storeOptions {
	storeOpts := &storeOptions{
		clock: time.Now,
	}

	for _, option := range options {
		option(storeOpts)
	}
	return storeOpts
}
