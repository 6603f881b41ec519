package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyx/internal/config"
	"notifyx/internal/logger"
)

func kafkaBrokerConfig() config.BrokerConfig {
	return config.BrokerConfig{
		Type: "kafka",
		Kafka: config.KafkaConfig{
			Brokers: []string{"localhost:9092"},
			GroupID: "notifier-service-group",
			Topic:   "notifyx.notifications",
		},
	}
}

func TestFactoryCreatesKafkaPair(t *testing.T) {
	cfg := kafkaBrokerConfig()

	producer, err := NewProducer(cfg, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &KafkaProducer{}, producer)
	require.NoError(t, producer.Close())

	consumer, err := NewConsumer(cfg, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &KafkaConsumer{}, consumer)
	require.NoError(t, consumer.Close())
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	cfg := config.BrokerConfig{Type: "carrier-pigeon"}

	_, err := NewProducer(cfg, logger.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown broker type")

	_, err = NewConsumer(cfg, logger.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown broker type")
}
