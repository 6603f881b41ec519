package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"notifyx/internal/config"
	"notifyx/internal/logger"
	"notifyx/pkg/logging"
	"notifyx/pkg/metrics"
)

const defaultExchange = "notifyx.events"

// RabbitMQProducer publishes envelopes through a durable topic exchange.
// Unlike Kafka there is no per-key partitioning; ordering holds only because
// a queue is consumed by a single worker at a time.
type RabbitMQProducer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   logger.Logger
}

func NewRabbitMQProducer(cfg config.RabbitMQConfig, log logger.Logger) (*RabbitMQProducer, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}

	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQProducer{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   log,
	}, nil
}

func (p *RabbitMQProducer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	err := p.channel.PublishWithContext(ctx,
		p.exchange,
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			MessageId:    key,
			Body:         payload,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		metrics.BrokerPublishTotal.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("failed to publish to exchange %s: %w", p.exchange, err)
	}

	metrics.BrokerPublishTotal.WithLabelValues(topic, "ok").Inc()
	return nil
}

func (p *RabbitMQProducer) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type RabbitMQConsumer struct {
	conn        *amqp091.Connection
	channel     *amqp091.Channel
	exchange    string
	logger      logger.Logger
	serviceName string
}

func NewRabbitMQConsumer(cfg config.RabbitMQConfig, log logger.Logger) (*RabbitMQConsumer, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = defaultExchange
	}

	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQConsumer{
		conn:        conn,
		channel:     ch,
		exchange:    exchange,
		logger:      log,
		serviceName: "unknown",
	}, nil
}

func (c *RabbitMQConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	queueName := topic + ".q"
	q, err := c.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	if err := c.channel.QueueBind(q.Name, topic, c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
	}

	deliveries, err := c.channel.Consume(
		q.Name,
		c.serviceName,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", q.Name, err)
	}

	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming",
		"queue", q.Name,
		"exchange", c.exchange,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", q.Name)
			}

			metrics.BrokerMessagesReadTotal.WithLabelValues(c.serviceName, topic).Inc()

			msgCtx := logging.WithNotificationID(consumeCtx, d.MessageId)
			if err := handler(msgCtx, d.MessageId, d.Body); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Handler failed, requeueing message",
					"error", err,
					"queue", q.Name,
				)
				_ = d.Nack(false, true)
				continue
			}

			if err := d.Ack(false); err != nil {
				c.logger.ErrorwCtx(msgCtx, "Failed to ack message",
					"error", err,
					"queue", q.Name,
				)
			}
		}
	}
}

func (c *RabbitMQConsumer) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}
