package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func Validate(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errs = append(errs, err)
	}

	if err := validateStorage(cfg.Storage); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "broker.kafka.brokers",
				Message: "at least one broker address is required",
			}
		}
		if cfg.Kafka.Topic == "" {
			return &ValidationError{
				Field:   "broker.kafka.topic",
				Message: "topic is required",
			}
		}
	case "rabbitmq":
		if cfg.RabbitMQ.URL == "" {
			return &ValidationError{
				Field:   "broker.rabbitmq.url",
				Message: "connection URL is required",
			}
		}
	case "":
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type %q", cfg.Type),
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Redis.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "redis host is required",
		}
	}

	return nil
}

func validateStorage(cfg StorageConfig) error {
	if cfg.TTLDays <= 0 {
		return &ValidationError{
			Field:   "storage.ttl_days",
			Message: "retention must be at least one day",
		}
	}

	if cfg.MaxPerUser <= 0 {
		return &ValidationError{
			Field:   "storage.max_per_user",
			Message: "per-user cap must be positive",
		}
	}

	return nil
}
