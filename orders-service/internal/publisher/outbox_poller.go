package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	r "github.com/ecozbite/ecozbite/orders-service/internal/repository"
)

const (
	Topic       = "order-events"
	batchSize   = 100
	expiryBatch = 100
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Expirer moves overdue pending orders to expired. The resulting status
// changes reach Kafka through the outbox like any other.
type Expirer interface {
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

type OutboxPoller struct {
	eventTick  time.Duration
	expiryTick time.Duration
	repo       r.OutboxRepository
	expirer    Expirer
	writer     messageWriter
	log        *zap.Logger
}

func NewOutboxPoller(repo r.OutboxRepository, expirer Expirer, log *zap.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxPoller{
		eventTick:  time.Second,
		expiryTick: time.Minute,
		repo:       repo,
		expirer:    expirer,
		writer:     w,
		log:        log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	expiryTicker := time.NewTicker(p.expiryTick)
	defer eventTicker.Stop()
	defer expiryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-expiryTicker.C:
			p.expireOverdueOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.log.Error("failed to publish outbox event", zap.Int("event_id", event.ID), zap.Error(err))
			// keep per-order ordering: later events for the same order must not overtake this one
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error("failed to mark outbox event as processed", zap.Int("event_id", event.ID), zap.Error(err))
			continue
		}
	}
}

func (p *OutboxPoller) expireOverdueOrders(ctx context.Context) {
	if p.expirer == nil {
		return
	}
	n, err := p.expirer.ExpireOverdue(ctx, expiryBatch)
	if err != nil {
		p.log.Error("failed to expire overdue orders", zap.Error(err))
		return
	}
	if n > 0 {
		p.log.Info("expired overdue orders", zap.Int("count", n))
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order's events on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
