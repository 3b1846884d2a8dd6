package rabbitmq

import (
	"fmt"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

// CallbackFunc processes one delivery. A nil return acks the message; an
// error nacks it without requeue so a poisoned job cannot spin forever.
type CallbackFunc func(body []byte) error

// Subscriber consumes classification jobs published by the intake service.
type Subscriber struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	done    chan struct{}
}

// NewSubscriber connects to RabbitMQ, declares the exchange and queue, and
// binds them with the routing key.
func NewSubscriber(amqpURL, exchangeName, queueName, routingKey string) (*Subscriber, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, routingKey, exchangeName, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &Subscriber{
		conn:    conn,
		channel: channel,
		queue:   queue.Name,
		done:    make(chan struct{}),
	}, nil
}

// Subscribe starts consuming in a background goroutine, invoking callback per
// delivery until Close is called.
func (s *Subscriber) Subscribe(callback CallbackFunc) error {
	deliveries, err := s.channel.Consume(
		s.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case <-s.done:
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn("RabbitMQ delivery channel closed")
					return
				}
				if err := callback(d.Body); err != nil {
					log.Errorf("Failed to process delivery: %v", err)
					if nerr := d.Nack(false, false); nerr != nil {
						log.Errorf("Failed to nack delivery: %v", nerr)
					}
					continue
				}
				if aerr := d.Ack(false); aerr != nil {
					log.Errorf("Failed to ack delivery: %v", aerr)
				}
			}
		}
	}()

	log.Infof("Subscribed to queue %s", s.queue)
	return nil
}

// Close stops the consumer loop and closes the connection.
func (s *Subscriber) Close() error {
	close(s.done)
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			return err
		}
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
