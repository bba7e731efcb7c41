package auction

import "context"

// Storage is a durable sink for normalized records.
type Storage interface {
	Persist(ctx context.Context, records []Record) error
}

// Publisher fans records out to streaming consumers.
type Publisher interface {
	Publish(ctx context.Context, records []Record) error
}
