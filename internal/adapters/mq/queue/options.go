package queue

type settings struct {
	capacity int
	name     string
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*settings)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(s *settings) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithName sets the metrics label of the queue.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}
