package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hasanarpat/memento-mori/pkg/config"
	"github.com/hasanarpat/memento-mori/pkg/db/models"
	"github.com/hasanarpat/memento-mori/pkg/enums"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/metrics"
	"github.com/hasanarpat/memento-mori/pkg/outbox"
	"github.com/hasanarpat/memento-mori/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	idleCeiling    = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Eventing      config.EventingConfig
	Logger        *logger.Logger
	DB            dbClient
	Publisher     outbox.Publisher
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       *metrics.OutboxMetrics
}

// Service drains outbox_events into the configured broker. Each batch is
// claimed with row locks so several publishers can run side by side.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	publisher   outbox.Publisher
	registry    registryResolver
	dlq         dlqRepository
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
	clock       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	for _, dep := range []struct {
		name    string
		missing bool
	}{
		{"logger", params.Logger == nil},
		{"database client", params.DB == nil},
		{"publisher", params.Publisher == nil},
		{"outbox repository", params.Repository == nil},
		{"event registry", params.Registry == nil},
		{"dlq repository", params.DLQRepository == nil},
	} {
		if dep.missing {
			return nil, fmt.Errorf("outbox publisher: %s is required", dep.name)
		}
	}

	ev := params.Eventing
	return &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		publisher:   params.Publisher,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		metrics:     params.Metrics,
		batchSize:   positiveOr(ev.BatchSize, 50),
		maxAttempts: positiveOr(ev.MaxAttempts, 10),
		poll:        time.Duration(positiveOr(ev.PollIntervalMS, 500)) * time.Millisecond,
		clock:       time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// the next one; empty polls and batch errors wait with jitter, the latter
// doubling up to idleCeiling.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ping(ctx, "database", s.db.Ping); err != nil {
		return err
	}
	if err := s.ping(ctx, "broker", s.publisher.Ping); err != nil {
		return err
	}

	wait := newBackoff(s.poll, idleCeiling)
	for ctx.Err() == nil {
		n, err := s.drainBatch(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			pause = wait.next()
		case n > 0:
			wait.reset()
			continue
		default:
			wait.reset()
			pause = s.poll
		}
		if err := sleepCtx(ctx, pause+rand.N(jitterWindow)); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox.publisher_stopped")
	return ctx.Err()
}

func (s *Service) ping(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "dependency", name), "outbox.ping_failed", err)
		return fmt.Errorf("%s ping: %w", name, err)
	}
	return nil
}

// drainBatch claims one batch and settles every row inside the same
// transaction. A row that fails to publish never aborts the batch; only
// bookkeeping errors do.
func (s *Service) drainBatch(ctx context.Context) (int, error) {
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(events)
		for _, event := range events {
			if err := s.settle(ctx, tx, event, s.deliver(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

type disposition int

const (
	delivered disposition = iota
	retryLater
	deadLetter
)

// verdict is what happened to one row and what must be recorded about it.
type verdict struct {
	disposition disposition
	reason      enums.OutboxDLQErrorReason
	err         error
	topic       string
	envelope    outbox.PayloadEnvelope
}

func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) verdict {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return verdict{disposition: deadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	v := verdict{topic: resolved.Descriptor.Topic, envelope: resolved.Envelope}
	if v.topic == "" {
		v.disposition, v.reason = deadLetter, enums.OutboxDLQReasonNonRetryable
		v.err = fmt.Errorf("no topic for event type %s", event.EventType)
		return v
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = s.publisher.Publish(publishCtx, brokerMessage(event, resolved))

	var permanent registry.NonRetryableError
	switch {
	case err == nil:
		v.disposition = delivered
	case errors.As(err, &permanent):
		v.disposition, v.reason, v.err = deadLetter, enums.OutboxDLQReasonNonRetryable, err
	case event.AttemptCount+1 >= s.maxAttempts:
		v.disposition, v.reason = deadLetter, enums.OutboxDLQReasonMaxAttempts
		v.err = fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err)
	default:
		v.disposition, v.err = retryLater, err
	}
	return v
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, v verdict) error {
	eventType := string(event.EventType)
	logCtx := s.logg.WithFields(ctx, rowFields(event, v))

	switch v.disposition {
	case delivered:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(logCtx, "outbox.published")

	case retryLater:
		if err := s.repo.MarkFailedTx(tx, event.ID, v.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", event.ID, err)
		}
		s.metrics.IncFailed(eventType)
		s.logg.Warn(logCtx, "outbox.publish_failed")

	case deadLetter:
		msg := v.err.Error()
		if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   v.reason,
			ErrorMessage:  &msg,
			AttemptCount:  event.AttemptCount,
			FailedAt:      s.clock().UTC(),
		}); err != nil {
			return fmt.Errorf("dead-letter %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, v.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark %s terminal: %w", event.ID, err)
		}
		s.metrics.IncDeadLettered(eventType, string(v.reason))
		s.logg.Warn(logCtx, "outbox.dead_lettered")
	}
	return nil
}

func brokerMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) outbox.Message {
	return outbox.Message{
		Topic: resolved.Descriptor.Topic,
		Key:   event.AggregateID.String(),
		Data:  event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func rowFields(event models.OutboxEvent, v verdict) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if v.topic != "" {
		fields["topic"] = v.topic
	}
	if v.envelope.EventID != "" {
		fields["event_id"] = v.envelope.EventID
	}
	if v.err != nil {
		fields["error"] = v.err.Error()
	}
	if v.reason != "" {
		fields["error_reason"] = v.reason
	}
	return fields
}

// backoff doubles from base up to ceiling and starts over after reset.
type backoff struct {
	base, ceiling, current time.Duration
}

func newBackoff(base, ceiling time.Duration) *backoff {
	return &backoff{base: base, ceiling: ceiling}
}

func (b *backoff) next() time.Duration {
	if b.current == 0 {
		b.current = b.base
	}
	b.current = min(b.current*2, b.ceiling)
	return b.current
}

func (b *backoff) reset() { b.current = 0 }

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
