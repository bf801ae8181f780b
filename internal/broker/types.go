package broker

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer publishes raw payloads. Key selects the partition, so messages for
// the same brand always land on the same partition in order.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// Message is one fetched record awaiting an explicit commit.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []kafka.Header
}

// MessageReader fetches messages without auto-commit. The caller decides when
// an offset is committed; a crash before Commit redelivers the message.
type MessageReader interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msg Message) error
	Close() error
}
