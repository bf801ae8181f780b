package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"fipeline/internal/config"
	"fipeline/internal/constants"
	"fipeline/internal/logger"
	"fipeline/pkg/metrics"
	"fipeline/pkg/tracing"
)

type KafkaProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	serviceName string
}

func NewKafkaProducer(cfg config.KafkaConfig, serviceName string, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log, serviceName: serviceName}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value []byte) error {
	headers := []kafka.Header{}
	headers = tracing.InjectTraceContext(ctx, headers)

	err := p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   value,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.KafkaMessagesWrittenTotal.WithLabelValues(p.serviceName, topic).Inc()
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaMessageReader struct {
	reader      *kafka.Reader
	logger      logger.Logger
	serviceName string
	topic       string
}

func NewKafkaMessageReader(cfg config.KafkaConfig, topic, serviceName string, log logger.Logger) *KafkaMessageReader {
	log.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
		"service_name", serviceName,
	)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	return &KafkaMessageReader{
		reader:      r,
		logger:      log,
		serviceName: serviceName,
		topic:       topic,
	}
}

func (r *KafkaMessageReader) Fetch(ctx context.Context) (Message, error) {
	m, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}

	metrics.KafkaMessagesReadTotal.WithLabelValues(r.serviceName, r.topic).Inc()

	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Headers:   m.Headers,
	}, nil
}

func (r *KafkaMessageReader) Commit(ctx context.Context, msg Message) error {
	err := r.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
	if err != nil {
		metrics.KafkaCommitsTotal.WithLabelValues(r.serviceName, r.topic, "error").Inc()
		return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
	}

	metrics.KafkaCommitsTotal.WithLabelValues(r.serviceName, r.topic, "success").Inc()
	return nil
}

func (r *KafkaMessageReader) Close() error {
	return r.reader.Close()
}
