package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/notification"
	"github.com/garyjia/workflow-engine/internal/repository"
)

// OutboxDispatcher drains the notification outbox: rows committed by the
// engine's transactions are delivered to the Notifier here, after the
// fact, so a notification failure can never roll back a transition.
type OutboxDispatcher struct {
	outbox   *repository.OutboxRepository
	notifier notification.Notifier
	logger   *zap.Logger

	pollInterval time.Duration
	batchSize    int
	maxAttempts  int

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewOutboxDispatcher creates a new outbox dispatcher
func NewOutboxDispatcher(
	outbox *repository.OutboxRepository,
	notifier notification.Notifier,
	pollInterval time.Duration,
	batchSize int,
	logger *zap.Logger,
) *OutboxDispatcher {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxDispatcher{
		outbox:       outbox,
		notifier:     notifier,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxAttempts:  5,
	}
}

// Start starts the dispatch loop
func (d *OutboxDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("outbox dispatcher is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.isRunning = true

	d.logger.Info("OutboxDispatcher started",
		zap.Duration("poll_interval", d.pollInterval),
		zap.Int("batch_size", d.batchSize))

	go d.dispatchLoop()

	return nil
}

// Stop stops the dispatch loop
func (d *OutboxDispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return
	}

	d.isRunning = false
	if d.cancel != nil {
		d.cancel()
	}

	d.logger.Info("OutboxDispatcher stopped")
}

// Name returns the worker name for identification
func (d *OutboxDispatcher) Name() string {
	return "OutboxDispatcher"
}

func (d *OutboxDispatcher) dispatchLoop() {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(d.ctx); err != nil {
				d.logger.Error("Outbox dispatch pass failed", zap.Error(err))
			}
		}
	}
}

// DispatchPending delivers one batch of pending outbox entries. It is
// exported so callers can force a pass without waiting for the ticker.
func (d *OutboxDispatcher) DispatchPending(ctx context.Context) error {
	entries, err := d.outbox.PendingBatch(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		msg := notification.Message{
			TenantID:   entry.TenantID,
			InstanceID: entry.InstanceID,
			Category:   entry.Category,
			TargetTier: entry.TargetTier,
			TargetUser: entry.TargetUser,
			Summary:    entry.Summary,
		}

		if err := d.notifier.Notify(ctx, msg); err != nil {
			d.logger.Warn("Notification delivery failed",
				zap.Int64("outbox_id", entry.ID),
				zap.String("instance_id", entry.InstanceID),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err))
			if markErr := d.outbox.MarkFailed(ctx, entry.ID, d.maxAttempts); markErr != nil {
				d.logger.Error("Failed to record delivery failure", zap.Error(markErr))
			}
			continue
		}

		if err := d.outbox.MarkSent(ctx, entry.ID); err != nil {
			d.logger.Error("Failed to mark outbox entry sent",
				zap.Int64("outbox_id", entry.ID),
				zap.Error(err))
		}
	}

	return nil
}
