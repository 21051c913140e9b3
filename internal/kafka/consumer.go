package kafka

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when processing succeeded and the offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// ExhaustedFunc runs once a message has burned its whole retry budget. The
// message is committed afterwards; escalation is manual, not another
// redelivery.
type ExhaustedFunc func(ctx context.Context, m kafka.Message, cause error)

type Consumer struct {
	r           *kafka.Reader
	workers     int
	maxAttempts int
	backoff     time.Duration
	onExhausted ExhaustedFunc
}

func NewConsumer(brokers []string, group, topic string, workers, maxAttempts int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Consumer{r: r, workers: workers, maxAttempts: maxAttempts, backoff: 200 * time.Millisecond}
}

func (c *Consumer) OnExhausted(fn ExhaustedFunc) { c.onExhausted = fn }

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)

	for i := 0; i < c.workers; i++ {
		go func() {
			for m := range jobs {
				if err := c.process(ctx, m, h); err != nil {
					log.Printf("handler gave up on %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
				}
				// commit either way: exhausted messages were escalated, not requeued
				if err := c.r.CommitMessages(ctx, m); err != nil {
					log.Printf("commit: %v", err)
				}
			}
		}()
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			close(jobs)
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}
	}
}

// process retries the handler up to maxAttempts with linear backoff, then
// hands the message to the exhaustion hook.
func (c *Consumer) process(ctx context.Context, m kafka.Message, h Handler) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		if attempt < c.maxAttempts {
			log.Printf("attempt %d/%d failed for %s@%d: %v", attempt, c.maxAttempts, m.Topic, m.Offset, err)
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if c.onExhausted != nil {
		c.onExhausted(ctx, m, err)
	}
	return err
}
