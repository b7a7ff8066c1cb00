package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// TopicSubscriberStateChanged топик событий о переходах подписчиков
const TopicSubscriberStateChanged = "subscriber_state_changed"

// Config конфигурация для Kafka
type Config struct {
	Brokers           []string
	Topic             string
	NumPartitions     int32
	ReplicationFactor int16
	ClientID          string
}

// NewConfig создает конфигурацию с параметрами топика по умолчанию
func NewConfig(brokers []string, topic string) *Config {
	if topic == "" {
		topic = TopicSubscriberStateChanged
	}
	return &Config{
		Brokers:           brokers,
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
		ClientID:          "channel-access-bot",
	}
}

// NewSaramaConfig конфигурация Sarama для административного клиента
func NewSaramaConfig(cfg *Config) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	// Версия Kafka
	saramaConfig.Version = sarama.V3_3_0_0
	saramaConfig.ClientID = cfg.ClientID

	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Admin.Timeout = 15 * time.Second
	saramaConfig.Admin.Retry.Max = 3
	saramaConfig.Metadata.Retry.Max = 3

	return saramaConfig
}
