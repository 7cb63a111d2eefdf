package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"projecttracker/pkg/trace"
)

type Publisher struct {
	exchange string

	mu      sync.Mutex // amqp channels are not safe for concurrent publish
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	exchange = exchangeOrDefault(exchange)

	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{exchange: exchange, conn: conn, channel: ch}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.channel != nil && !p.conn.IsClosed()
}

// Publish sends payload as JSON with a five second deadline.
func (p *Publisher) Publish(routingKey string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.PublishWithContext(ctx, routingKey, payload)
}

// PublishWithContext sends payload as JSON, forwarding the trace id from ctx.
func (p *Publisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", routingKey, err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	if id := trace.FromContext(ctx); id != "" {
		msg.Headers = amqp091.Table{trace.Header: id}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}
