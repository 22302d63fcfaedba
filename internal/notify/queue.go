package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ArticlesIngestedQueue receives an event after each ingestion run that
// stored new articles.
const ArticlesIngestedQueue = "articles.ingested"

// ArticlesIngestedEvent describes one completed ingestion run.
type ArticlesIngestedEvent struct {
	Source     string    `json:"source"`
	Count      int       `json:"count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// QueuePublisher publishes domain events to RabbitMQ. Each publish dials a
// fresh connection; ingestion runs are rare enough that connection reuse is
// not worth the reconnect handling.
type QueuePublisher struct {
	url string
}

// NewQueuePublisher constructs a QueuePublisher.
func NewQueuePublisher(url string) *QueuePublisher {
	return &QueuePublisher{url: url}
}

// Publish declares the queue (idempotent, durable) and publishes the event
// with persistent delivery.
func (p *QueuePublisher) Publish(ctx context.Context, queue string, event any) error {
	conn, errDial := amqp.Dial(p.url)
	if errDial != nil {
		return fmt.Errorf("amqp dial: %w", errDial)
	}
	defer func() { _ = conn.Close() }()

	ch, errChannel := conn.Channel()
	if errChannel != nil {
		return fmt.Errorf("amqp channel: %w", errChannel)
	}
	defer func() { _ = ch.Close() }()

	if _, errDeclare := ch.QueueDeclare(queue, true, false, false, false, nil); errDeclare != nil {
		return fmt.Errorf("amqp queue declare: %w", errDeclare)
	}

	body, errMarshal := json.Marshal(event)
	if errMarshal != nil {
		return fmt.Errorf("marshal event: %w", errMarshal)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if errPublish := ch.PublishWithContext(ctx, "", queue, false, false, pub); errPublish != nil {
		return fmt.Errorf("amqp publish: %w", errPublish)
	}
	return nil
}
