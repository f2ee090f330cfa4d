package kafka

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	DefaultRetryBackoff = 100 * time.Millisecond
	DefaultMaxBackoff   = 5 * time.Second
)

type Consumer struct {
	reader     messageReader
	types      map[string]bool
	backoff    time.Duration
	maxBackoff time.Duration
}

type ConsumerOption func(*Consumer)

// WithEventTypes limits the consumer to messages whose event_type header is
// one of types. Messages without the header are always handled.
func WithEventTypes(types ...string) ConsumerOption {
	return func(c *Consumer) {
		c.types = make(map[string]bool, len(types))
		for _, t := range types {
			c.types[t] = true
		}
	}
}

// WithRetryBackoff sets the wait after a failed fetch. It doubles on each
// consecutive failure up to max and resets once a message arrives.
func WithRetryBackoff(initial, max time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.backoff = initial
		c.maxBackoff = max
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, opts...)
}

func newConsumer(reader messageReader, opts ...ConsumerOption) *Consumer {
	c := &Consumer{reader: reader, backoff: DefaultRetryBackoff, maxBackoff: DefaultMaxBackoff}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume hands messages to handler until ctx is done. A message is committed
// once handled, even when the handler fails, so a bad event cannot stall the
// group. It returns io.EOF once the reader is closed.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	wait := c.backoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return err
			}
			log.Printf("[Consumer] Error reading message, retrying in %s: %v", wait, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait = min(wait*2, c.maxBackoff)
			continue
		}
		wait = c.backoff

		if c.wants(msg) {
			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				log.Printf("[Consumer] Error handling message %s at offset %d: %v", msg.Key, msg.Offset, err)
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Printf("[Consumer] Failed to commit offset %d: %v", msg.Offset, err)
		}
	}
}

func (c *Consumer) wants(msg kafka.Message) bool {
	if c.types == nil {
		return true
	}
	for _, h := range msg.Headers {
		if h.Key == HeaderEventType {
			return c.types[string(h.Value)]
		}
	}
	return true
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
