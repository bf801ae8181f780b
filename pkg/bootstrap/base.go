package bootstrap

import (
	"context"
	"fmt"

	"fipeline/internal/broker"
	"fipeline/internal/config"
	"fipeline/internal/logger"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Reader   broker.MessageReader
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitProducer(serviceName string) error {
	producer, err := broker.NewProducer(b.Config.Broker, serviceName, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	b.Producer = producer
	return nil
}

func (b *Base) InitReader(topic, serviceName string) error {
	reader, err := broker.NewReader(b.Config.Broker, topic, serviceName, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create reader: %w", err)
	}

	b.Reader = reader
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Reader != nil {
		if err := b.Reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("reader close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
