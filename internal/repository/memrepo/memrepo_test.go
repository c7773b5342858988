package memrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
)

func TestAtomicallyDiscardsFailedWork(t *testing.T) {
	s := New()
	order := s.Put(&models.VideoOrder{Title: "teaser"})

	boom := errors.New("boom")
	err := s.Atomically(context.Background(), func(tx assignment.Tx) error {
		o, err := tx.GetOrder(context.Background(), order.ID)
		require.NoError(t, err)
		worker := "alice"
		o.AssignedWorker = &worker
		require.NoError(t, tx.SaveOrder(context.Background(), o))
		require.NoError(t, tx.RecordEvent(context.Background(), &models.AssignmentEvent{OrderID: o.ID}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, ok := s.Order(order.ID)
	require.True(t, ok)
	require.Nil(t, stored.AssignedWorker)
	require.Empty(t, s.Events())
}

func TestAtomicallyRejectsCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Atomically(ctx, func(assignment.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestCountsAndExpiry(t *testing.T) {
	s := New()
	worker := "alice"
	base := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := base.Add(d); return &v }

	s.Put(&models.VideoOrder{AssignedWorker: &worker, AssignedAt: at(0), Status: models.OrderStatusInProgress})
	s.Put(&models.VideoOrder{AssignedWorker: &worker, AssignedAt: at(time.Hour), Status: models.OrderStatusDone, DeliveryStatus: models.DeliveryStatusUrgentRevision})
	s.Put(&models.VideoOrder{AssignedWorker: &worker, AssignedAt: at(2 * time.Hour), Status: models.OrderStatusDone, DeliveryStatus: models.DeliveryStatusSent})
	s.Put(&models.VideoOrder{Title: "open"})

	err := s.Atomically(context.Background(), func(tx assignment.Tx) error {
		ctx := context.Background()

		active, err := tx.CountActive(ctx, worker, assignment.ActiveCriteria{
			Statuses:   []models.OrderStatus{models.OrderStatusInProgress, models.OrderStatusRevising},
			Deliveries: []models.DeliveryStatus{models.DeliveryStatusUrgentRevision},
		})
		require.NoError(t, err)
		require.Equal(t, 2, active)

		assigned, err := tx.CountAssignedBetween(ctx, worker, base, base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Equal(t, 2, assigned)

		expired, err := tx.FindExpired(ctx, base.Add(90*time.Minute), []models.OrderStatus{models.OrderStatusInProgress, models.OrderStatusDone})
		require.NoError(t, err)
		require.Len(t, expired, 2)
		require.True(t, expired[0].AssignedAt.Before(*expired[1].AssignedAt))
		return nil
	})
	require.NoError(t, err)
}

func TestSoftDeletedOrdersAreHidden(t *testing.T) {
	s := New()
	order := s.Put(&models.VideoOrder{Title: "gone"})

	require.NoError(t, s.Atomically(context.Background(), func(tx assignment.Tx) error {
		return tx.SoftDeleteOrder(context.Background(), order.ID)
	}))

	err := s.Atomically(context.Background(), func(tx assignment.Tx) error {
		_, err := tx.GetOrder(context.Background(), order.ID)
		return err
	})
	require.ErrorIs(t, err, assignment.ErrNotFound)

	stored, ok := s.Order(order.ID)
	require.True(t, ok)
	require.True(t, stored.IsSoftDeleted())
}

func TestWorkers(t *testing.T) {
	w := NewWorkers()
	added := w.Add(models.Worker{Username: "alice", Password: "hash"})
	require.NotEmpty(t, added.ID)
	require.Equal(t, models.RoleWorker, added.Role)
	require.True(t, added.IsActive)

	_, err := w.FindWorker(context.Background(), "nobody")
	require.ErrorIs(t, err, assignment.ErrNotFound)

	login := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	require.NoError(t, w.RecordLogin(context.Background(), "alice", login))
	found, err := w.FindWorker(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, found.LastLogin)
	require.True(t, login.Equal(*found.LastLogin))
}
