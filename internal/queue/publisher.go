// Package queue carries click events over a Redis Stream, decoupling the
// latency-critical redirect from click persistence. Delivery is
// at-least-once: the consumer tolerates duplicates and redelivery.
package queue

import (
	"context"
	"encoding/json"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"geolink-go/constant"
	"geolink-go/internal/dto"
)

// payloadField is the stream entry field holding the JSON message.
const payloadField = "payload"

// Publisher appends click messages to the event stream.
type Publisher struct {
	pool   *redis.Pool
	logger *zap.Logger
	stream string
}

// NewPublisher builds a Publisher for the click event stream.
func NewPublisher(pool *redis.Pool, logger *zap.Logger) *Publisher {
	return &Publisher{
		pool:   pool,
		logger: logger,
		stream: constant.ClickStream,
	}
}

// Publish appends one message. Callers on the redirect path treat a returned
// error as loggable, never fatal.
func (p *Publisher) Publish(ctx context.Context, msg dto.ClickMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	conn, err := p.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.Error("Failed to close Redis connection",
				zap.Error(closeErr),
				zap.String("connection_type", "redis"),
			)
		}
	}()

	if _, err := conn.Do("XADD", p.stream, "*", payloadField, payload); err != nil {
		return err
	}
	return nil
}
