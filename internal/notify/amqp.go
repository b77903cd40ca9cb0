package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/reminder-be/shared/rabbitmq"
)

// AMQPSink publishes notification payloads to a RabbitMQ exchange where a
// downstream delivery worker picks them up. A rejected or failed publish
// is a failed delivery; broker acceptance of the persistent message counts
// as handing it to the channel.
type AMQPSink struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

func NewAMQPSink(client *rabbitmq.Client, logger *slog.Logger) *AMQPSink {
	return &AMQPSink{
		client: client,
		logger: logger,
	}
}

type amqpNotification struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

func (s *AMQPSink) Send(ctx context.Context, target, text string) error {
	body, err := json.Marshal(amqpNotification{Target: target, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := s.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	s.logger.Debug("Notification published",
		slog.String("target", target),
	)

	return nil
}
