package messaging

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker closed")

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
