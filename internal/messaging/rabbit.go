package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
)

const DefaultExchange = "appointment.events"

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type eventMessage struct {
	ID            int64           `json:"id,omitempty"`
	EventType     string          `json:"event_type"`
	AppointmentID *uuid.UUID      `json:"appointment_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RabbitPublisher sends every event log entry to a topic exchange, routed by event type.
type RabbitPublisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

func NewRabbitPublisher(ch Channel, exchange string) *RabbitPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &RabbitPublisher{ch: ch, exchange: exchange}
}

// Dial opens a connection and channel and declares the durable topic exchange.
// The returned close func releases both.
func Dial(url, exchange string) (*RabbitPublisher, func() error, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	closeFn := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return NewRabbitPublisher(ch, exchange), closeFn, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev appointment.EventLog) error {
	body, err := json.Marshal(eventMessage{
		ID:            ev.ID,
		EventType:     ev.EventType,
		AppointmentID: ev.AppointmentID,
		Payload:       json.RawMessage(ev.Payload),
		CreatedAt:     ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.CreatedAt,
		Type:         ev.EventType,
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, ev.EventType, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventType, err)
	}
	return nil
}
