package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/IT-Gio/ShopElec/internal/domain/checkout"
)

var _ checkout.Notifier = (*AMQPPublisher)(nil)

// AMQPConfig configures AMQPPublisher.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	Queue      string
	From       string
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher queues confirmation emails on RabbitMQ for a mail worker.
type AMQPPublisher struct {
	cfg  AMQPConfig
	conn *amqp.Connection

	mu sync.Mutex
	ch channel
}

// DialAMQP connects to the broker and declares the durable exchange and
// queue confirmations are routed to.
func DialAMQP(cfg AMQPConfig) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if err := declare(ch, cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPPublisher{cfg: cfg, conn: conn, ch: ch}, nil
}

func declare(ch *amqp.Channel, cfg AMQPConfig) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return errors.Wrapf(err, "declare exchange %q", cfg.Exchange)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return errors.Wrapf(err, "declare queue %q", cfg.Queue)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return errors.Wrapf(err, "bind queue %q", cfg.Queue)
	}
	return nil
}

// OrderConfirmed publishes the rendered confirmation as a persistent message.
func (p *AMQPPublisher) OrderConfirmed(ctx context.Context, c checkout.Confirmation) error {
	msg := Confirmation(c, p.cfg.From)

	var e jx.Encoder
	msg.Encode(&e)

	pub := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		MessageId:    msg.OrderID,
		Type:         "order.confirmation",
		Body:         e.Bytes(),
	}

	// Channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, pub); err != nil {
		return errors.Wrapf(err, "publish confirmation for order %s", msg.OrderID)
	}
	return nil
}

// Check reports an error when the broker connection is gone.
func (p *AMQPPublisher) Check(context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("amqp connection closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
