package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"projecttracker/pkg/metrics"
	"projecttracker/pkg/trace"
)

// ErrMalformed marks a message that can never be handled. It is dropped
// instead of requeued.
var ErrMalformed = errors.New("malformed message")

type MessageHandler func(ctx context.Context, data json.RawMessage) error

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger

	stopOnce sync.Once
	tag      string
}

// NewConsumer binds a queue to routingKey on exchange. An empty queueName
// declares a server-named exclusive queue, so every process instance gets
// its own copy of each message.
func NewConsumer(url, exchange, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
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

	fail := func(format string, err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf(format, err)
	}

	if err := DeclareExchange(ch, exchange); err != nil {
		return fail("failed to declare exchange: %w", err)
	}

	exclusive := queueName == ""
	q, err := ch.QueueDeclare(
		queueName,
		!exclusive, // durable
		exclusive,  // auto-delete
		exclusive,  // exclusive
		false,
		nil,
	)
	if err != nil {
		return fail("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return fail("failed to bind queue: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", q.Name),
		zap.String("exchange", exchange),
		zap.Bool("exclusive", exclusive),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
		tag:        "tracker-" + q.Name,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop cancels the subscription so StartConsuming returns once the
// in-flight message is settled.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		if c.channel != nil {
			if err := c.channel.Cancel(c.tag, false); err != nil {
				c.logger.Warn("Failed to cancel consumer", zap.Error(err))
			}
		}
	})
}

func (c *Consumer) Close() {
	c.Stop()
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until the delivery channel closes.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.handle(msg)
	}
	return nil
}

// handle settles every delivery exactly once, including on panic.
func (c *Consumer) handle(msg amqp091.Delivery) {
	start := time.Now()
	ctx := context.Background()
	if id, ok := msg.Headers[trace.Header].(string); ok && id != "" {
		ctx = trace.WithContext(ctx, id)
	}
	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, false); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	err := c.handler(ctx, msg.Body)
	metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	if err != nil {
		requeue := !errors.Is(err, ErrMalformed) && !msg.Redelivered
		log.Error("Handler error", zap.Bool("requeue", requeue), zap.Error(err))
		if err := msg.Nack(false, requeue); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
		return
	}
	log.Debug("Message processed successfully")
}
