/*
Package notify provides calendar sync notifiers for the studio engine.

PURPOSE:
  The engine tells a CalendarNotifier when a slot is created, occupied,
  freed or deleted. Notifiers here either publish those changes to
  RabbitMQ for an external calendar worker, or just log them.

  All failures are returned to the engine, which logs and discards them.
  A notifier never blocks a booking.

ROUTING KEYS (topic exchange "calendar"):
  slot.created   a new slot; the worker creates the calendar event
  slot.occupied  slot booked; label carries "Booked: <name>"
  slot.freed     slot available again
  slot.deleted   slot removed; the worker deletes the event

EXTERNAL REFERENCE:
  Publishing is asynchronous, so the reference returned by SlotCreated is
  derived from the slot id and travels in every later message.

SEE ALSO:
  - studio/notifier.go: Interface and best-effort wrapper
*/
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/warp/studio-engine/studio"
)

const (
	ExchangeName = "calendar"
	ExchangeKind = "topic"

	KeySlotCreated  = "slot.created"
	KeySlotOccupied = "slot.occupied"
	KeySlotFreed    = "slot.freed"
	KeySlotDeleted  = "slot.deleted"
)

// SlotEvent is the JSON body of every calendar message.
type SlotEvent struct {
	ExternalRef string     `json:"external_ref"`
	SlotID      string     `json:"slot_id,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	Label       string     `json:"label,omitempty"`
	Status      string     `json:"status,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// ExternalRef returns the calendar reference used for a slot.
func ExternalRef(slotID string) string { return "studio-slot-" + slotID }

// publisher is the subset of *amqp.Channel used here.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes slot changes to a topic exchange.
type AMQPNotifier struct {
	conn *amqp.Connection
	ch   publisher

	mu  sync.Mutex
	now func() time.Time
}

var _ studio.CalendarNotifier = (*AMQPNotifier)(nil)

// NewAMQPNotifier dials url and declares the durable exchange.
func NewAMQPNotifier(url string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &AMQPNotifier{conn: conn, ch: ch, now: time.Now}, nil
}

func (n *AMQPNotifier) SlotCreated(ctx context.Context, slot studio.Slot) (string, error) {
	ref := ExternalRef(slot.ID)
	start, end := slot.StartAt, slot.EndAt
	err := n.publish(ctx, KeySlotCreated, SlotEvent{
		ExternalRef: ref,
		SlotID:      slot.ID,
		StartAt:     &start,
		EndAt:       &end,
		Status:      string(studio.SlotAvailable),
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (n *AMQPNotifier) SlotOccupied(ctx context.Context, externalRef, label string) error {
	return n.publish(ctx, KeySlotOccupied, SlotEvent{
		ExternalRef: externalRef,
		Label:       label,
		Status:      string(studio.SlotBooked),
	})
}

func (n *AMQPNotifier) SlotFreed(ctx context.Context, externalRef string) error {
	return n.publish(ctx, KeySlotFreed, SlotEvent{
		ExternalRef: externalRef,
		Status:      string(studio.SlotAvailable),
	})
}

func (n *AMQPNotifier) SlotDeleted(ctx context.Context, externalRef string) error {
	return n.publish(ctx, KeySlotDeleted, SlotEvent{ExternalRef: externalRef})
}

func (n *AMQPNotifier) publish(ctx context.Context, routingKey string, event SlotEvent) error {
	event.OccurredAt = n.now().UTC()
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	log.Printf("[RabbitMQ] published to %s/%s: %s", ExchangeName, routingKey, string(body))
	return nil
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() error {
	if c, ok := n.ch.(*amqp.Channel); ok && c != nil {
		c.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
