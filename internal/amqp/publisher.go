package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/websocket"
)

const (
	publishTimeout = 5 * time.Second
	// queueSize bounds the events waiting for the broker
	queueSize = 256
)

// channel is the subset of *amqp091.Channel the publisher uses
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Message is the body relayed for every change event
type Message struct {
	OwnerID int32           `json:"ownerId"`
	Event   websocket.Event `json:"event"`
}

type outbound struct {
	ownerID int32
	event   websocket.Event
}

// Publisher relays change events to a durable topic exchange.
// The routing key is the event type, e.g. "obligation.paid".
// Publish only enqueues; a single goroutine talks to the broker.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  channel
	exchange string
	logger   zerolog.Logger

	queueMu sync.RWMutex
	queue   chan outbound
	closed  bool
	done    chan struct{}
	dropped atomic.Uint64
}

// NewPublisher dials the broker and declares the exchange
func NewPublisher(url, exchange string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := newPublisher(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, logger zerolog.Logger) (*Publisher, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger.With().Str("component", "amqp_publisher").Str("exchange", exchange).Logger(),
		queue:    make(chan outbound, queueSize),
		done:     make(chan struct{}),
	}
	go p.relay()
	return p, nil
}

// Publish implements websocket.EventPublisher. It never blocks: the event is queued
// for the relay goroutine and dropped when the queue is full or the publisher closed.
// Failures are logged; the local change has already committed.
func (p *Publisher) Publish(ownerID int32, event websocket.Event) {
	p.queueMu.RLock()
	defer p.queueMu.RUnlock()
	if p.closed {
		p.drop(ownerID, event, "publisher closed")
		return
	}
	select {
	case p.queue <- outbound{ownerID: ownerID, event: event}:
	default:
		p.drop(ownerID, event, "queue full")
	}
}

func (p *Publisher) drop(ownerID int32, event websocket.Event, reason string) {
	p.dropped.Add(1)
	p.logger.Warn().
		Int32("owner_id", ownerID).
		Str("event_type", event.Type).
		Str("reason", reason).
		Msg("Dropped event")
}

// Dropped returns how many events were discarded without reaching the broker queue
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// relay drains the queue until Close
func (p *Publisher) relay() {
	defer close(p.done)
	for out := range p.queue {
		if err := p.PublishContext(context.Background(), out.ownerID, out.event); err != nil {
			p.logger.Error().Err(err).
				Int32("owner_id", out.ownerID).
				Str("event_type", out.event.Type).
				Msg("Failed to relay event")
		}
	}
}

// PublishContext publishes one event and reports the broker error
func (p *Publisher) PublishContext(ctx context.Context, ownerID int32, event websocket.Event) error {
	body, err := json.Marshal(Message{OwnerID: ownerID, Event: event})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.Timestamp,
			Headers:      amqp091.Table{"owner_id": ownerID},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.Debug().
		Int32("owner_id", ownerID).
		Str("event_type", event.Type).
		Msg("Relayed event")
	return nil
}

// Close flushes queued events, then closes the channel and the connection
func (p *Publisher) Close() error {
	p.queueMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.queueMu.Unlock()
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
