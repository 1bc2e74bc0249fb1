// Package rabbitmq relays outbox records to a durable topic exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrClosed = errors.New("rabbitmq: publisher closed")

// Publisher keeps one connection and channel open and redials after the broker drops them.
// Messages are routed by event name (the ce-type header) and fall back to the topic.
type Publisher struct {
	URL      string
	Exchange string

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	p := &Publisher{URL: url, Exchange: exchange}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.Exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	table := amqp.Table{}
	for k, v := range headers {
		table[k] = v
	}
	pub := amqp.Publishing{
		ContentType:   headers["content-type"],
		DeliveryMode:  amqp.Persistent,
		MessageId:     headers["ce-id"],
		CorrelationId: key,
		Timestamp:     time.Now().UTC(),
		Headers:       table,
		Body:          payload,
	}
	if pub.ContentType == "" {
		pub.ContentType = "application/json"
	}
	if err := p.ch.PublishWithContext(ctx,
		p.Exchange,                 // exchange
		routingKey(topic, headers), // routing key
		false,                      // mandatory
		false,                      // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func routingKey(topic string, headers map[string]string) string {
	if name := headers["ce-type"]; name != "" {
		return name
	}
	return topic
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
