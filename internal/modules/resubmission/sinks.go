package resubmission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Sink delivers applicant notices to an external consumer.
type Sink interface {
	Name() string
	Publish(ctx context.Context, notice domain.ApplicantNotice) error
}

// StreamAdder is the slice of the Redis client the stream sink needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends notices to a Redis stream.
type RedisSink struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewRedisSink creates a sink writing to stream. A positive maxLen caps the
// stream approximately at that many entries.
func NewRedisSink(client StreamAdder, stream string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient connects to the server at url. A non-empty password overrides
// the one in the url.
func NewRedisClient(url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	return redis.NewClient(opts), nil
}

// Name identifies the sink in logs.
func (s *RedisSink) Name() string {
	return "redis:" + s.stream
}

// Publish adds the notice to the stream.
func (s *RedisSink) Publish(ctx context.Context, notice domain.ApplicantNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshaling notice: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"data":     string(data),
			"event_id": notice.ID,
			"deal_id":  notice.DealID,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

// Publisher is the slice of an AMQP channel the queue sink needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes notices to a durable queue through the default exchange.
type AMQPSink struct {
	channel Publisher
	queue   string
}

// NewAMQPSink creates a sink publishing to queue.
func NewAMQPSink(channel Publisher, queue string) *AMQPSink {
	return &AMQPSink{channel: channel, queue: queue}
}

// DialAMQP connects to the broker, declares queue as durable and returns the
// sink with a function that closes the channel and the connection.
func DialAMQP(url, queue string) (*AMQPSink, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	closeFn := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return NewAMQPSink(ch, queue), closeFn, nil
}

// Name identifies the sink in logs.
func (s *AMQPSink) Name() string {
	return "amqp:" + s.queue
}

// Publish sends the notice as a persistent JSON message.
func (s *AMQPSink) Publish(ctx context.Context, notice domain.ApplicantNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	err = s.channel.PublishWithContext(
		ctx,
		"",      // exchange
		s.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    notice.ID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish notice: %w", err)
	}
	return nil
}
