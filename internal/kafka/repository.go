package kafka

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
)

// Repository publishes each written artifact as one message, keyed by the
// artifact key. Write returns once the broker acknowledged the message.
type Repository struct {
	config   kafka.ConfigMap
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger

	flushTimeout time.Duration
}

type Option func(*Repository)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

func WithFlushTimeout(d time.Duration) Option {
	return func(r *Repository) {
		r.flushTimeout = d
	}
}

// ParseURL reads brokers from the host and the topic from the path of
// kafka://host:port/topic. Query parameters are passed to librdkafka as is.
func ParseURL(uri *url.URL) (brokers string, topic string, config kafka.ConfigMap, err error) {
	topic = strings.TrimPrefix(uri.Path, "/")
	if topic == "" {
		return "", "", nil, fmt.Errorf("topic must be specified in URL path")
	}

	brokers = uri.Host
	config = kafka.ConfigMap{}
	for key, values := range uri.Query() {
		if len(values) > 0 {
			config[key] = values[0]
		}
	}
	return brokers, topic, config, nil
}

func New(brokers string, topic string, extra kafka.ConfigMap, opts ...Option) (*Repository, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	config := kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"client.id":         "resultset-exporter",
		"acks":              "all",
		"compression.type":  "snappy",
	}
	for k, v := range extra {
		config[k] = v
	}

	r := &Repository{
		config:       config,
		topic:        topic,
		logger:       zap.NewNop(),
		flushTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}

	producer, err := kafka.NewProducer(&r.config)
	if err != nil {
		return nil, err
	}
	r.producer = producer

	// delivery reports go to the channel passed to Produce, leaving
	// client level errors here
	go func() {
		for e := range producer.Events() {
			if ev, ok := e.(kafka.Error); ok {
				r.logger.Error("Producer error", zap.Error(ev))
			}
		}
	}()

	r.logger.Info("Kafka repository connected",
		zap.String("topic", topic),
		zap.String("brokers", brokers))

	return r, nil
}

func (r *Repository) Write(ctx context.Context, key string, reader io.Reader) error {
	value, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	err = r.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &r.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: value,
	}, delivery)
	if err != nil {
		return fmt.Errorf("producing %s: %w", key, err)
	}

	select {
	case e := <-delivery:
		if err := deliveryError(e); err != nil {
			return fmt.Errorf("delivering %s: %w", key, err)
		}
		m := e.(*kafka.Message)
		r.logger.Debug("Message delivered",
			zap.String("key", key),
			zap.String("topic", r.topic),
			zap.Int32("partition", m.TopicPartition.Partition),
			zap.Int64("offset", int64(m.TopicPartition.Offset)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func deliveryError(e kafka.Event) error {
	switch ev := e.(type) {
	case *kafka.Message:
		return ev.TopicPartition.Error
	case kafka.Error:
		return ev
	default:
		return fmt.Errorf("unexpected delivery event %T", e)
	}
}

func (r *Repository) Flush(ctx context.Context) error {
	timeout := r.flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if remaining := r.producer.Flush(int(timeout.Milliseconds())); remaining > 0 {
		return fmt.Errorf("%d messages not delivered to %s", remaining, r.topic)
	}
	return nil
}

func (r *Repository) Close(ctx context.Context) error {
	err := r.Flush(ctx)
	r.producer.Close()
	return err
}
