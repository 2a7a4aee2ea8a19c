package common

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Exchange string

type Queue string

type BindingKey string

type MessageProducer interface {
	Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error
}

type MessageConsumer interface {
	Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error)
}

const (
	UserExchange Exchange = "user_exchange"

	UserCreatedQueue     Queue      = "user_created_queue"
	UserCreatedKey       BindingKey = "user.created"
	UserEmailChangeQueue Queue      = "user_email_change_queue"
	UserEmailChangeKey   BindingKey = "user.email_change"

	UserPasswordResetQueue Queue      = "user_password_reset_queue"
	UserPasswordResetKey   BindingKey = "user.password_reset"
)

type MessageBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewMessageBroker(URI string) (*MessageBroker, error) {
	conn, err := amqp.Dial(URI)
	if err != nil {
		return nil, fmt.Errorf("could not connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}

	return &MessageBroker{conn: conn, ch: ch}, nil
}

// Close closes the connection and channel of the message broker.
func (mb *MessageBroker) Close() error {
	if err := mb.ch.Close(); err != nil {
		return err
	}

	return mb.conn.Close()
}

// SetupUserExchange declares the user exchange and binds the queues the mail
// service consumes from.
func SetupUserExchange(mb *MessageBroker) error {
	err := mb.ch.ExchangeDeclare(string(UserExchange), "direct", true, false, false, false, nil)
	if err != nil {
		return err
	}

	bindings := map[Queue]BindingKey{
		UserCreatedQueue:       UserCreatedKey,
		UserEmailChangeQueue:   UserEmailChangeKey,
		UserPasswordResetQueue: UserPasswordResetKey,
	}

	for queue, key := range bindings {
		if _, err := mb.ch.QueueDeclare(string(queue), true, false, false, false, nil); err != nil {
			return err
		}

		if err := mb.ch.QueueBind(string(queue), string(key), string(UserExchange), false, nil); err != nil {
			return err
		}
	}

	return nil
}

func (mb *MessageBroker) Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error {
	err := mb.ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        msg,
	})
	if err != nil {
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

func (mb *MessageBroker) Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error) {
	msgs, err := mb.ch.Consume(string(queue), string(key), false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("could not consume message: %w", err)
	}

	return msgs, nil
}
