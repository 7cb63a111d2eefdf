package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange all tracker events go through.
const DefaultExchange = "events"

func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

func DeclareExchange(ch *amqp091.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

func exchangeOrDefault(name string) string {
	if name == "" {
		return DefaultExchange
	}
	return name
}
