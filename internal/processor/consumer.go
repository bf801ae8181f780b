package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fipeline/internal/broker"
	"fipeline/internal/config"
	"fipeline/internal/constants"
	"fipeline/internal/logger"
	pkgerrors "fipeline/pkg/errors"
	"fipeline/pkg/logging"
	"fipeline/pkg/metrics"
	"fipeline/pkg/models"
	"fipeline/pkg/retry"
	"fipeline/pkg/tracing"
)

// outcome is the commit decision for one handled message.
type outcome int

const (
	// outcomeCommit acknowledges a successfully processed message.
	outcomeCommit outcome = iota
	// outcomeSkipFatal acknowledges a message that can never succeed.
	outcomeSkipFatal
	// outcomeRetriesExhausted acknowledges a message that kept failing
	// transiently until the retry budget ran out.
	outcomeRetriesExhausted
)

func (o outcome) label() string {
	switch o {
	case outcomeCommit:
		return "success"
	case outcomeSkipFatal:
		return "fatal"
	case outcomeRetriesExhausted:
		return "retries_exhausted"
	default:
		return "unknown"
	}
}

// decide maps the terminal processing error to a commit decision. It is pure:
// the offset is always committed so one poisoned message never stalls its
// partition, and the only question is whether the message goes to the DLQ.
func decide(err error) outcome {
	if err == nil {
		return outcomeCommit
	}
	if !pkgerrors.IsRetryable(err) {
		return outcomeSkipFatal
	}
	return outcomeRetriesExhausted
}

// dlqEnvelope wraps the original payload with failure context for operators
// replaying the dead letter topic.
type dlqEnvelope struct {
	Payload     json.RawMessage `json:"payload"`
	Error       string          `json:"error"`
	SourceTopic string          `json:"source_topic"`
	Partition   int             `json:"partition"`
	Offset      int64           `json:"offset"`
	FailedAt    time.Time       `json:"failed_at"`
}

// Consumer drives the brand event stream: fetch, process with bounded
// retries, then commit per the decision table above. Offsets are committed
// manually and only after handling completes.
type Consumer struct {
	reader      broker.MessageReader
	dlq         broker.Producer
	processor   *Processor
	cfg         config.KafkaConfig
	logger      logger.Logger
	serviceName string
}

func NewConsumer(reader broker.MessageReader, dlq broker.Producer, proc *Processor, cfg config.KafkaConfig, serviceName string, log logger.Logger) *Consumer {
	return &Consumer{
		reader:      reader,
		dlq:         dlq,
		processor:   proc,
		cfg:         cfg,
		logger:      log,
		serviceName: serviceName,
	}
}

// Run consumes until ctx is canceled. Fetch failures back off with an
// exponential stream-level delay that resets on the next successful fetch;
// exhausting the stream retry budget stops the consumer with an error.
func (c *Consumer) Run(ctx context.Context) error {
	runCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(runCtx, "Started consuming",
		"topic", c.topic(),
	)

	streamBackOff := c.newStreamBackOff()

	for {
		msg, err := c.reader.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(runCtx, "Stopped consuming",
					"topic", c.topic(),
					"reason", "context canceled",
				)
				return ctx.Err()
			}

			delay := streamBackOff.NextBackOff()
			if delay == backoff.Stop {
				c.logger.ErrorwCtx(runCtx, "Giving up fetching messages, stream retry budget exhausted",
					"error", err,
					"topic", c.topic(),
				)
				return pkgerrors.ErrServiceUnavailable.WithDetail("topic", c.topic()).WithCause(err)
			}

			c.logger.ErrorwCtx(runCtx, "Error fetching message, backing off",
				"error", err,
				"topic", c.topic(),
				"delay", delay,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		streamBackOff.Reset()

		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg broker.Message) {
	start := time.Now()

	var brandMsg models.BrandMessage
	if err := json.Unmarshal(msg.Value, &brandMsg); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to decode brand message, skipping",
			"error", err,
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		metrics.BrandMessagesTotal.WithLabelValues("decode_error").Inc()
		c.commit(ctx, msg)
		return
	}

	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "brands.consume", msg.Headers)
	defer span.End()

	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)
	msgCtx = logging.WithBrandCode(msgCtx, brandMsg.Code)
	msgCtx = logging.WithOffset(msgCtx, msg.Offset)

	timeout := c.cfg.MessageTimeout
	if timeout <= 0 {
		timeout = constants.DefaultMessageTimeout
	}
	procCtx, cancel := context.WithTimeout(msgCtx, timeout)
	defer cancel()

	err := c.processWithRetry(procCtx, brandMsg)

	// A shutdown mid-flight leaves the offset uncommitted so the message is
	// redelivered to the next consumer in the group.
	if err != nil && ctx.Err() != nil {
		c.logger.WarnwCtx(msgCtx, "Processing interrupted by shutdown, leaving message uncommitted",
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		return
	}

	result := decide(err)
	switch result {
	case outcomeCommit:
	case outcomeSkipFatal:
		c.logger.ErrorwCtx(msgCtx, "Message failed permanently, dead-lettering",
			"error", err,
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		c.sendToDLQ(msgCtx, msg, err, result.label())
	case outcomeRetriesExhausted:
		c.logger.ErrorwCtx(msgCtx, "Message failed after retries, dead-lettering",
			"error", err,
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		c.sendToDLQ(msgCtx, msg, err, result.label())
	}

	c.commit(ctx, msg)
	metrics.BrandMessagesTotal.WithLabelValues(result.label()).Inc()
	metrics.ObserveBrandProcessing(time.Since(start), result.label())
}

func (c *Consumer) processWithRetry(ctx context.Context, brandMsg models.BrandMessage) error {
	policy := retry.DefaultPolicy()

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = pkgerrors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
				)
			}
		}()
		_, err = c.processor.Process(ctx, brandMsg)
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, c.topic()).Inc()
		c.logger.WarnwCtx(ctx, "Retrying brand processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
		)
	})
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg broker.Message, cause error, reason string) {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		c.logger.WarnwCtx(ctx, "No DLQ configured, committing message to avoid blocking",
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
		return
	}

	envelope := dlqEnvelope{
		Payload:     json.RawMessage(msg.Value),
		Error:       cause.Error(),
		SourceTopic: msg.Topic,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		FailedAt:    time.Now(),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to encode DLQ envelope",
			"error", err,
		)
		return
	}

	if err := c.dlq.Publish(ctx, c.cfg.DLQTopic, string(msg.Key), body); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to publish to DLQ",
			"error", err,
			"dlq_topic", c.cfg.DLQTopic,
		)
		return
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, msg.Topic, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", msg.Topic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", reason,
	)
}

func (c *Consumer) commit(ctx context.Context, msg broker.Message) {
	// Commit with a fresh timeout when the run context is already gone, so a
	// handled message is still acknowledged during shutdown.
	commitCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
	}

	if err := c.reader.Commit(commitCtx, msg); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to commit message",
			"error", err,
			"topic", msg.Topic,
			"offset", msg.Offset,
		)
	}
}

func (c *Consumer) newStreamBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 1 * time.Second
	exp.MaxInterval = 1 * time.Minute
	exp.Multiplier = 2.0
	exp.MaxElapsedTime = c.cfg.StreamRetry.MaxElapsedTime

	if c.cfg.StreamRetry.InitialInterval > 0 {
		exp.InitialInterval = c.cfg.StreamRetry.InitialInterval
	}
	if c.cfg.StreamRetry.MaxInterval > 0 {
		exp.MaxInterval = c.cfg.StreamRetry.MaxInterval
	}
	if c.cfg.StreamRetry.Multiplier > 0 {
		exp.Multiplier = c.cfg.StreamRetry.Multiplier
	}

	var b backoff.BackOff = exp
	if c.cfg.StreamRetry.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(c.cfg.StreamRetry.MaxAttempts-1))
	}

	b.Reset()
	return b
}

func (c *Consumer) topic() string {
	if c.cfg.BrandsTopic != "" {
		return c.cfg.BrandsTopic
	}
	return constants.DefaultBrandsTopic
}

// Close releases the reader and the DLQ producer.
func (c *Consumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	if c.dlq != nil {
		if closeErr := c.dlq.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
