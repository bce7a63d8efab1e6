package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ecozbite/ecozbite/orders-service/internal/domain"
)

const (
	Topic   = "order-events"
	GroupID = "orders-notifications"

	minReadBackoff = 100 * time.Millisecond
	maxReadBackoff = 5 * time.Second
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type NotificationSaver interface {
	SaveNotification(ctx context.Context, n *domain.Notification) error
}

type Consumer struct {
	repo       NotificationSaver
	reader     messageReader
	log        *zap.Logger
	now        func() time.Time
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(repo NotificationSaver, log *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		repo:       repo,
		reader:     reader,
		log:        log,
		now:        time.Now,
		minBackoff: minReadBackoff,
		maxBackoff: maxReadBackoff,
	}
}

// Run consumes until ctx is cancelled or the reader is closed. Read failures
// are retried with exponential backoff.
func (c *Consumer) Run(ctx context.Context) {
	backoff := c.minBackoff
	for {
		err := c.processMessage(ctx)
		switch {
		case err == nil:
			backoff = c.minBackoff
			continue
		case ctx.Err() != nil, errors.Is(err, io.EOF):
			return
		}

		c.log.Warn("retrying kafka read", zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Warn("error closing kafka reader", zap.Error(err))
	}
}

// processMessage reads and handles one message. Only read errors are
// returned; a message that cannot be handled is logged and skipped.
func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	if err := c.handleEvent(ctx, m.Value); err != nil {
		c.log.Error("failed to handle order event",
			zap.Int64("offset", m.Offset),
			zap.String("key", string(m.Key)),
			zap.Error(err))
	}
	return nil
}

// handleEvent records the notification an order event produces, if any.
// Redelivered events are absorbed by the repository.
func (c *Consumer) handleEvent(ctx context.Context, value []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("parse order event: %w", err)
	}

	n, ok := domain.NotificationFor(event, c.now().UTC())
	if !ok {
		return nil
	}
	if err := c.repo.SaveNotification(ctx, &n); err != nil {
		return fmt.Errorf("save %s notification for order %s: %w", n.Type, event.OrderID, err)
	}

	c.log.Info("notification recorded",
		zap.String("type", string(n.Type)),
		zap.String("recipient_id", n.RecipientID),
		zap.String("order_id", event.OrderID.String()))
	return nil
}
