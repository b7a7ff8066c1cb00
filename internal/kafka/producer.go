package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Publisher публикация событий о переходах подписчиков
type Publisher interface {
	PublishSubscriberEvent(ctx context.Context, event domain.SubscriberEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
	log    *logger.Logger
}

// NewKafkaProducer создает продюсер поверх kafka-go Writer
func NewKafkaProducer(cfg *Config, log *logger.Logger) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &kafkaProducer{writer: writer, topic: cfg.Topic, log: log}, nil
}

// buildMessage ключ сообщения = id подписчика, события одного подписчика идут в одну партицию
func buildMessage(topic string, event domain.SubscriberEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: failed to marshal event: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(event.SubscriberID.String()),
		Value: value,
		Time:  event.OccurredAt,
	}, nil
}

func (k *kafkaProducer) PublishSubscriberEvent(ctx context.Context, event domain.SubscriberEvent) error {
	message, err := buildMessage(k.topic, event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", k.topic,
			"subscriberID", event.SubscriberID, "operation", event.Operation)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published subscriber event", "topic", k.topic,
		"subscriberID", event.SubscriberID, "operation", event.Operation, "to", event.To)
	return nil
}

// Close закрывает writer; вызывать при остановке приложения
func (k *kafkaProducer) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer writer closed successfully")
	return nil
}

// NoopPublisher используется, когда брокеры не настроены
type NoopPublisher struct{}

func (NoopPublisher) PublishSubscriberEvent(context.Context, domain.SubscriberEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
