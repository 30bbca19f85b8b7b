package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/domain/entity"
	"github.com/garyjia/workflow-engine/internal/notification"
	"github.com/garyjia/workflow-engine/internal/repository"
	"github.com/garyjia/workflow-engine/pkg/database"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) delivered() []notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Message{}, n.messages...)
}

func newTestOutbox(t *testing.T) (*repository.OutboxRepository, *database.DB) {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations(filepath.Join("..", "..", "migrations")))

	return repository.NewOutboxRepository(db.DB, logger), db
}

func enqueueEntry(t *testing.T, db *database.DB, outbox *repository.OutboxRepository, instanceID string, tier int) {
	t.Helper()
	require.NoError(t, db.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		return outbox.Enqueue(tx, &entity.OutboxEntry{
			TenantID:   "acme",
			InstanceID: instanceID,
			Category:   entity.CategoryPurchase,
			TargetTier: tier,
			Summary:    "purchase request awaiting approval",
		})
	}))
}

func TestDispatchPendingDeliversAndMarksSent(t *testing.T) {
	outbox, db := newTestOutbox(t)
	notifier := &recordingNotifier{}
	dispatcher := NewOutboxDispatcher(outbox, notifier, time.Second, 10, zap.NewNop())

	enqueueEntry(t, db, outbox, "wf-1", 1)
	enqueueEntry(t, db, outbox, "wf-2", 2)

	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	delivered := notifier.delivered()
	require.Len(t, delivered, 2)
	assert.Equal(t, "wf-1", delivered[0].InstanceID)
	assert.Equal(t, 1, delivered[0].TargetTier)
	assert.Equal(t, "wf-2", delivered[1].InstanceID)

	pending, err := outbox.PendingBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDispatchPendingKeepsFailedEntriesPending(t *testing.T) {
	outbox, db := newTestOutbox(t)
	notifier := &recordingNotifier{err: errors.New("push gateway unavailable")}
	dispatcher := NewOutboxDispatcher(outbox, notifier, time.Second, 10, zap.NewNop())

	enqueueEntry(t, db, outbox, "wf-1", 1)

	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	// The entry stays pending with an attempt recorded, ready for the
	// next pass.
	pending, err := outbox.PendingBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestDispatchPendingGivesUpAfterMaxAttempts(t *testing.T) {
	outbox, db := newTestOutbox(t)
	notifier := &recordingNotifier{err: errors.New("push gateway unavailable")}
	dispatcher := NewOutboxDispatcher(outbox, notifier, time.Second, 10, zap.NewNop())

	enqueueEntry(t, db, outbox, "wf-1", 1)

	for i := 0; i < dispatcher.maxAttempts; i++ {
		require.NoError(t, dispatcher.DispatchPending(context.Background()))
	}

	pending, err := outbox.PendingBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDispatcherStartStop(t *testing.T) {
	outbox, _ := newTestOutbox(t)
	dispatcher := NewOutboxDispatcher(outbox, &recordingNotifier{}, 10*time.Millisecond, 10, zap.NewNop())

	require.NoError(t, dispatcher.Start(context.Background()))
	assert.Error(t, dispatcher.Start(context.Background()))

	dispatcher.Stop()
	dispatcher.Stop()

	require.NoError(t, dispatcher.Start(context.Background()))
	dispatcher.Stop()
}

func TestDispatcherDeliversEnqueuedEntriesFromLoop(t *testing.T) {
	outbox, db := newTestOutbox(t)
	notifier := &recordingNotifier{}
	dispatcher := NewOutboxDispatcher(outbox, notifier, 10*time.Millisecond, 10, zap.NewNop())

	enqueueEntry(t, db, outbox, "wf-1", 1)

	require.NoError(t, dispatcher.Start(context.Background()))
	defer dispatcher.Stop()

	require.Eventually(t, func() bool {
		return len(notifier.delivered()) == 1
	}, 2*time.Second, 20*time.Millisecond)
}
