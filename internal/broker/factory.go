package broker

import (
	"fmt"

	"fipeline/internal/config"
	"fipeline/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, serviceName string, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, serviceName, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewReader(cfg config.BrokerConfig, topic, serviceName string, log logger.Logger) (MessageReader, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaMessageReader(cfg.Kafka, topic, serviceName, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
