package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/amirphl/homecare-hr/config"
	"github.com/amirphl/homecare-hr/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MailPublisher announces committed outbound mails to external consumers
type MailPublisher interface {
	PublishMail(ctx context.Context, mail *models.OutboundMail) error
	Close() error
}

// MailEvent is the message body published for each queued mail
type MailEvent struct {
	UUID   string                    `json:"uuid"`
	Source models.OutboundMailSource `json:"source"`
	models.MailDocument
}

// NewMailEvent builds the event of a queued mail
func NewMailEvent(mail *models.OutboundMail) MailEvent {
	return MailEvent{
		UUID:         mail.UUID.String(),
		Source:       mail.Source,
		MailDocument: mail.Document(),
	}
}

// RabbitMQMailPublisher publishes mail events to a durable topic exchange
type RabbitMQMailPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	routeKey string
}

// NewRabbitMQMailPublisher dials the broker and declares the exchange
func NewRabbitMQMailPublisher(cfg config.QueueConfig) (*RabbitMQMailPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &RabbitMQMailPublisher{
		conn:     conn,
		ch:       ch,
		exchange: cfg.Exchange,
		routeKey: cfg.MailRouteKey,
	}, nil
}

func (p *RabbitMQMailPublisher) PublishMail(ctx context.Context, mail *models.OutboundMail) error {
	body, err := json.Marshal(NewMailEvent(mail))
	if err != nil {
		return fmt.Errorf("failed to marshal mail event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		p.routeKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    mail.UUID.String(),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish mail %s: %w", mail.UUID, err)
	}
	return nil
}

func (p *RabbitMQMailPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// NoopMailPublisher is used when the queue is disabled
type NoopMailPublisher struct{}

func (NoopMailPublisher) PublishMail(ctx context.Context, mail *models.OutboundMail) error { return nil }
func (NoopMailPublisher) Close() error                                                    { return nil }
