package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"geolink-go/constant"
	"geolink-go/internal/dto"
	"geolink-go/internal/model"
)

const (
	defaultBatchSize = 10

	// Block timeout for XREADGROUP.
	defaultBlockTimeout = 5 * time.Second

	// Minimum idle time before a pending message is reclaimed from a dead
	// consumer.
	defaultClaimMinIdle = time.Minute
)

// Consumer reads click messages from the stream in batches, validates each
// against the click schema, persists valid ones and routes malformed ones to
// the dead-letter stream. A message is acknowledged only after its row is
// written (or it was dead-lettered); unacknowledged messages are reclaimed
// and redelivered, so a transient store failure needs no manual retry loop
// here.
type Consumer struct {
	pool       *redis.Pool
	db         *gorm.DB
	logger     *zap.Logger
	validate   *validator.Validate
	stream     string
	deadLetter string
	group      string
	consumerID string

	batchSize    int
	blockTimeout time.Duration
	claimMinIdle time.Duration
}

// NewConsumer builds a Consumer for the click event stream.
func NewConsumer(pool *redis.Pool, db *gorm.DB, logger *zap.Logger, consumerID string) *Consumer {
	return &Consumer{
		pool:         pool,
		db:           db,
		logger:       logger,
		validate:     validator.New(),
		stream:       constant.ClickStream,
		deadLetter:   constant.ClickDeadLetter,
		group:        constant.ClickStreamGroup,
		consumerID:   consumerID,
		batchSize:    defaultBatchSize,
		blockTimeout: defaultBlockTimeout,
		claimMinIdle: defaultClaimMinIdle,
	}
}

// EnsureGroup creates the consumer group, creating the stream with it if
// needed.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer c.closeConn(conn)

	_, err = conn.Do("XGROUP", "CREATE", c.stream, c.group, "0", "MKSTREAM")
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run consumes until the context is cancelled. Each iteration first reclaims
// pending messages abandoned past the idle threshold, then blocks for new
// ones.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("Click consumer started",
		zap.String("stream", c.stream),
		zap.String("group", c.group),
		zap.String("consumer", c.consumerID),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Click consumer stopped")
			return
		default:
		}

		if err := c.consumeOnce(ctx); err != nil {
			c.logger.Error("Click consumer iteration failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer c.closeConn(conn)

	claimed, err := c.claimStale(conn)
	if err != nil {
		c.logger.Warn("Failed to reclaim pending click messages", zap.Error(err))
	}
	c.processBatch(ctx, conn, claimed)

	entries, err := c.readBatch(conn)
	if err != nil {
		return err
	}
	c.processBatch(ctx, conn, entries)
	return nil
}

// streamEntry is one message read from the stream.
type streamEntry struct {
	id      string
	payload []byte
}

func (c *Consumer) readBatch(conn redis.Conn) ([]streamEntry, error) {
	reply, err := conn.Do("XREADGROUP",
		"GROUP", c.group, c.consumerID,
		"COUNT", c.batchSize,
		"BLOCK", int(c.blockTimeout/time.Millisecond),
		"STREAMS", c.stream, ">",
	)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		// Block timeout expired with nothing to read.
		return nil, nil
	}

	streams, err := redis.Values(reply, nil)
	if err != nil {
		return nil, err
	}

	var entries []streamEntry
	for _, s := range streams {
		streamReply, err := redis.Values(s, nil)
		if err != nil || len(streamReply) < 2 {
			continue
		}
		parsed, err := parseEntries(streamReply[1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, parsed...)
	}
	return entries, nil
}

// claimStale takes over messages left pending by a crashed consumer.
func (c *Consumer) claimStale(conn redis.Conn) ([]streamEntry, error) {
	reply, err := redis.Values(conn.Do("XAUTOCLAIM",
		c.stream, c.group, c.consumerID,
		int(c.claimMinIdle/time.Millisecond), "0-0",
		"COUNT", c.batchSize,
	))
	if err != nil {
		return nil, err
	}
	if len(reply) < 2 {
		return nil, nil
	}
	return parseEntries(reply[1])
}

func parseEntries(raw interface{}) ([]streamEntry, error) {
	values, err := redis.Values(raw, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]streamEntry, 0, len(values))
	for _, v := range values {
		entryReply, err := redis.Values(v, nil)
		if err != nil || len(entryReply) < 2 {
			continue
		}
		id, err := redis.String(entryReply[0], nil)
		if err != nil {
			continue
		}
		fields, err := redis.StringMap(entryReply[1], nil)
		if err != nil {
			continue
		}
		entries = append(entries, streamEntry{
			id:      id,
			payload: []byte(fields[payloadField]),
		})
	}
	return entries, nil
}

// processBatch handles messages sequentially; each maps to an independent
// insert, so there is no intra-batch ordering requirement.
func (c *Consumer) processBatch(ctx context.Context, conn redis.Conn, entries []streamEntry) {
	for _, entry := range entries {
		c.processMessage(ctx, conn, entry)
	}
}

func (c *Consumer) processMessage(ctx context.Context, conn redis.Conn, entry streamEntry) {
	var msg dto.ClickMessage
	parseErr := json.Unmarshal(entry.payload, &msg)
	if parseErr == nil {
		parseErr = c.validate.Struct(&msg)
	}
	if parseErr != nil {
		// Malformed messages are not auto-correctable: dead-letter the raw
		// payload unmodified and acknowledge so it is never redelivered.
		c.routeToDeadLetter(conn, entry, parseErr)
		return
	}

	click := model.LinkClick{
		LinkID:      msg.Data.ID,
		AccountID:   msg.Data.AccountID,
		Country:     msg.Data.Country,
		Destination: msg.Data.Destination,
		ClickedTime: msg.Data.ClickedTime,
		Latitude:    msg.Data.Latitude,
		Longitude:   msg.Data.Longitude,
	}

	if err := c.db.WithContext(ctx).Create(&click).Error; err != nil {
		// Transient store failure: leave the message pending so the stream
		// redelivers it after the idle threshold.
		c.logger.Error("Failed to persist click, leaving message pending",
			zap.String("message_id", entry.id),
			zap.String("link_id", msg.Data.ID),
			zap.Error(err))
		return
	}

	c.ack(conn, entry.id)
}

func (c *Consumer) routeToDeadLetter(conn redis.Conn, entry streamEntry, cause error) {
	c.logger.Warn("Click message failed validation, routing to dead letter",
		zap.String("message_id", entry.id),
		zap.Error(cause))

	if _, err := conn.Do("XADD", c.deadLetter, "*", payloadField, entry.payload); err != nil {
		// Keep the message pending rather than lose it.
		c.logger.Error("Failed to write dead-letter entry",
			zap.String("message_id", entry.id),
			zap.Error(err))
		return
	}
	c.ack(conn, entry.id)
}

func (c *Consumer) ack(conn redis.Conn, id string) {
	if _, err := conn.Do("XACK", c.stream, c.group, id); err != nil {
		c.logger.Error("Failed to acknowledge click message",
			zap.String("message_id", id),
			zap.Error(err))
	}
}

func (c *Consumer) closeConn(conn redis.Conn) {
	if err := conn.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection",
			zap.Error(err),
			zap.String("connection_type", "redis"),
		)
	}
}
