// Package messaging receives mailbox events from Azure Service Bus. The
// mailbox collaborator publishes one message per inbound email; this
// receiver hands the body to the ingestion producer and settles the message
// by the handler outcome.
package messaging

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jafarov01/property-management-bot/config"
)

// Handler processes one raw message body. A nil return completes the
// message; an error abandons it for redelivery.
type Handler func(ctx context.Context, body []byte) error

// AzureServiceBus receives mailbox messages from one queue.
type AzureServiceBus struct {
	client    *azservicebus.Client
	receiver  *azservicebus.Receiver
	queueName string
}

// NewAzureServiceBus connects to the configured queue.
func NewAzureServiceBus(cfg config.ServiceBusConfig) (*AzureServiceBus, error) {
	if cfg.ConnectionString == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	receiver, err := client.NewReceiverForQueue(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus receiver")
	}

	return &AzureServiceBus{
		client:    client,
		receiver:  receiver,
		queueName: cfg.QueueName,
	}, nil
}

// ProcessMessages receives until the context is done. Each message is
// completed only after the handler returns nil, so a crash between receipt
// and handling redelivers instead of losing the email.
func (b *AzureServiceBus) ProcessMessages(ctx context.Context, handler Handler) error {
	log.Info().Str("queue", b.queueName).Msg("Service Bus processor started")

	for {
		messages, err := b.receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Service Bus processor stopped")
				return ctx.Err()
			}
			log.Error().Err(err).Msg("failed to receive messages")
			continue
		}

		for _, message := range messages {
			if err := handler(ctx, message.Body); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("failed to process mailbox message")
				if err := b.receiver.AbandonMessage(context.Background(), message, nil); err != nil {
					log.Error().Err(err).Str("message_id", message.MessageID).Msg("failed to abandon message")
				}
				continue
			}

			if err := b.receiver.CompleteMessage(context.Background(), message, nil); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("failed to complete message")
			}
		}
	}
}

// Close shuts down the receiver and client.
func (b *AzureServiceBus) Close() error {
	if b.receiver != nil {
		if err := b.receiver.Close(context.Background()); err != nil {
			return err
		}
	}
	if b.client != nil {
		return b.client.Close(context.Background())
	}
	return nil
}
