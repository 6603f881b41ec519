package broker

import (
	"context"
)

// HandlerFunc processes one delivered payload. The payload is handed over
// raw: the dispatcher must see malformed envelopes so it can record a
// terminal FAILED status keyed by the broker message key.
type HandlerFunc func(ctx context.Context, key string, payload []byte) error

type Producer interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// Consumer delivers each published payload at least once, ordered per key.
// Redelivery after a consumer failure is expected; handlers must be
// idempotent.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}
