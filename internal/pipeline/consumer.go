package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Handler processes one job. Errors are logged and the loop continues.
type Handler func(ctx context.Context, job Job) error

// Consumer drains the queue with a single goroutine, so jobs apply in
// enqueue order and never race each other.
type Consumer struct {
	queue   *Queue
	handler Handler
}

// NewConsumer creates a consumer over queue.
func NewConsumer(queue *Queue, handler Handler) *Consumer {
	return &Consumer{
		queue:   queue,
		handler: handler,
	}
}

// Run processes jobs until the context is done or the queue is closed and
// drained. A failing or panicking job is logged and skipped; it never
// stops the loop.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().Msg("pipeline consumer started")
	for {
		job, ok := c.queue.Dequeue(ctx)
		if !ok {
			log.Info().Msg("pipeline consumer stopped")
			return ctx.Err()
		}
		c.process(ctx, job)
	}
}

func (c *Consumer) process(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Err(errors.Errorf("panic: %v", r)).
				Str("external_message_id", job.ExternalMessageID).
				Msg("pipeline job panicked")
		}
	}()

	if err := c.handler(ctx, job); err != nil {
		log.Error().
			Err(err).
			Str("external_message_id", job.ExternalMessageID).
			Msg("pipeline job failed")
	}
}
