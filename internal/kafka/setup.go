package kafka

import (
	"errors"
	"fmt"

	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/IBM/sarama"
)

// EnsureTopics проверяет и создает топик событий подписчиков
func EnsureTopics(cfg *Config, log *logger.Logger) error {
	if len(cfg.Brokers) == 0 || cfg.Brokers[0] == "" {
		return errors.New("kafka broker address is empty")
	}

	admin, err := sarama.NewClusterAdmin(cfg.Brokers, NewSaramaConfig(cfg))
	if err != nil {
		log.Errorw("Failed to connect to Kafka cluster", "brokers", cfg.Brokers, "error", err)
		return fmt.Errorf("kafka cluster admin: %w", err)
	}
	defer admin.Close()

	return ensureTopic(admin, cfg, log)
}

// topicAdmin часть sarama.ClusterAdmin, нужная для создания топиков
type topicAdmin interface {
	ListTopics() (map[string]sarama.TopicDetail, error)
	CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error
}

func ensureTopic(admin topicAdmin, cfg *Config, log *logger.Logger) error {
	existing, err := admin.ListTopics()
	if err != nil {
		log.Errorw("Failed to list Kafka topics", "error", err)
		return fmt.Errorf("kafka list topics: %w", err)
	}
	if _, ok := existing[cfg.Topic]; ok {
		log.Debugw("Topic already exists", "topic", cfg.Topic)
		return nil
	}

	log.Infow("Creating Kafka topic", "topic", cfg.Topic, "partitions", cfg.NumPartitions)
	err = admin.CreateTopic(cfg.Topic, &sarama.TopicDetail{
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}, false)
	if err != nil {
		if isTopicExists(err) {
			log.Warnw("Topic was created concurrently", "topic", cfg.Topic)
			return nil
		}
		log.Errorw("Failed to create Kafka topic", "topic", cfg.Topic, "error", err)
		return fmt.Errorf("kafka create topic %s: %w", cfg.Topic, err)
	}
	return nil
}

func isTopicExists(err error) bool {
	if errors.Is(err, sarama.ErrTopicAlreadyExists) {
		return true
	}
	var topicErr *sarama.TopicError
	return errors.As(err, &topicErr) && topicErr.Err == sarama.ErrTopicAlreadyExists
}
