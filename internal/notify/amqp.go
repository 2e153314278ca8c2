// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package notify

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// AMQPConfig describes the broker connection.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// AMQPPublisher publishes events to a durable topic exchange. The routing
// key is the event type.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

var _ Notifier = (*AMQPPublisher)(nil)

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, syerr.New(syerr.CodeNotifyConnectFailure, "amqp url must not be empty")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "switchyard.gates"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeNotifyConnectFailure, "dialing amqp broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, syerr.Wrap(err, syerr.CodeNotifyConnectFailure, "opening amqp channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, syerr.Wrap(err, syerr.CodeNotifyConnectFailure, "declaring exchange",
			syerr.Field("exchange", exchange))
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish implements Notifier. amqp channels are not safe for concurrent
// publishing, so calls are serialized.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return syerr.Wrap(err, syerr.CodeNotifyPublishFailure, "encoding event")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return syerr.New(syerr.CodeNotifyPublishFailure, "publisher is closed")
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.GateID + ":" + ev.Type,
		Timestamp:    ev.At,
		Body:         body,
	})
	if err != nil {
		return syerr.Wrap(err, syerr.CodeNotifyPublishFailure, "publishing event",
			syerr.FieldGateID(ev.GateID))
	}
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
