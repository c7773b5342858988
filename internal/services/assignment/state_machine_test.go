package assignment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
)

func strPtr(s string) *string { return &s }

func TestStateMachine_Claim(t *testing.T) {
	var sm assignment.StateMachine
	now := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	o := &models.VideoOrder{Status: models.OrderStatusUnclaimed}

	require.ErrorIs(t, sm.Claim(o, "  ", now), assignment.ErrInvalidArgument)

	require.NoError(t, sm.Claim(o, "alice", now))
	require.Equal(t, models.OrderStatusInProgress, o.Status)
	require.Equal(t, "alice", o.Worker())
	require.NotNil(t, o.AssignedAt)
	require.True(t, o.AssignedAt.Equal(now))

	require.ErrorIs(t, sm.Claim(o, "bob", now.Add(time.Minute)), assignment.ErrAlreadyClaimed)
	require.Equal(t, "alice", o.Worker())
}

func TestStateMachine_CompletionRequiresDeliverable(t *testing.T) {
	var sm assignment.StateMachine
	now := time.Now()
	o := &models.VideoOrder{Status: models.OrderStatusInProgress, AssignedWorker: strPtr("alice"), AssignedAt: &now}

	for _, to := range []models.OrderStatus{models.OrderStatusDone, models.OrderStatusRevisionDone} {
		err := sm.TransitionStatus(o, to, now)
		require.ErrorIs(t, err, assignment.ErrInvalidTransition)

		var te *assignment.TransitionError
		require.ErrorAs(t, err, &te)
		require.Equal(t, string(to), te.To)
	}

	require.NoError(t, sm.SetDeliverable(o, "https://cdn.example.com/v/1.mp4"))
	require.NoError(t, sm.TransitionStatus(o, models.OrderStatusDone, now))
	require.Equal(t, models.OrderStatusDone, o.Status)
	require.Equal(t, "alice", o.Worker(), "completion keeps the worker for attribution")
}

func TestStateMachine_CompletedAtStampedOnce(t *testing.T) {
	var sm assignment.StateMachine
	t0 := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	o := &models.VideoOrder{
		Status:         models.OrderStatusInProgress,
		AssignedWorker: strPtr("alice"),
		AssignedAt:     &t0,
		DeliverableURL: strPtr("https://cdn.example.com/v/1.mp4"),
	}

	t1 := t0.Add(time.Hour)
	require.NoError(t, sm.TransitionStatus(o, models.OrderStatusDone, t1))
	require.NoError(t, sm.TransitionStatus(o, models.OrderStatusRevising, t1.Add(time.Hour)))
	require.NoError(t, sm.TransitionStatus(o, models.OrderStatusRevisionDone, t1.Add(2*time.Hour)))

	require.NotNil(t, o.CompletedAt)
	require.True(t, o.CompletedAt.Equal(t1))
}

func TestStateMachine_ClaimedOrderCannotDriftToUnclaimed(t *testing.T) {
	var sm assignment.StateMachine
	now := time.Now()
	o := &models.VideoOrder{Status: models.OrderStatusRevising, AssignedWorker: strPtr("alice"), AssignedAt: &now}

	require.ErrorIs(t, sm.TransitionStatus(o, models.OrderStatusUnclaimed, now), assignment.ErrInvalidTransition)
	require.Equal(t, models.OrderStatusRevising, o.Status)
}

func TestStateMachine_StatusWithoutWorkerRejected(t *testing.T) {
	var sm assignment.StateMachine
	o := &models.VideoOrder{Status: models.OrderStatusUnclaimed}

	require.ErrorIs(t, sm.TransitionStatus(o, models.OrderStatusInProgress, time.Now()), assignment.ErrInvalidTransition)
	require.ErrorIs(t, sm.TransitionStatus(o, "archived", time.Now()), assignment.ErrInvalidArgument)
}

func TestStateMachine_ClearIsHardReset(t *testing.T) {
	var sm assignment.StateMachine
	now := time.Now()
	o := &models.VideoOrder{
		Status:         models.OrderStatusDone,
		AssignedWorker: strPtr("alice"),
		AssignedAt:     &now,
		DeliverableURL: strPtr("https://cdn.example.com/v/1.mp4"),
	}

	require.True(t, sm.Clear(o))
	requireUnclaimed(t, o)
	require.True(t, o.HasDeliverable(), "clearing the worker keeps the deliverable")

	require.False(t, sm.Clear(o))
}

func TestStateMachine_SetDeliverable(t *testing.T) {
	var sm assignment.StateMachine
	o := &models.VideoOrder{Status: models.OrderStatusInProgress, DeliverableURL: strPtr("https://x/1.mp4")}

	require.NoError(t, sm.SetDeliverable(o, ""))
	require.False(t, o.HasDeliverable())

	o.Status = models.OrderStatusDone
	o.DeliverableURL = strPtr("https://x/1.mp4")
	require.ErrorIs(t, sm.SetDeliverable(o, " "), assignment.ErrInvalidTransition)
	require.True(t, o.HasDeliverable())
}

func TestStateMachine_SetPayment(t *testing.T) {
	var sm assignment.StateMachine
	o := &models.VideoOrder{PaymentStatus: models.PaymentStatusUnpaid}

	require.NoError(t, sm.SetPayment(o, models.PaymentStatusPaid, false))
	require.ErrorIs(t, sm.SetPayment(o, models.PaymentStatusUnpaid, false), assignment.ErrInvalidTransition)
	require.NoError(t, sm.SetPayment(o, models.PaymentStatusPaid, false), "repeating the settled value is allowed")
	require.NoError(t, sm.SetPayment(o, models.PaymentStatusDefaulted, true))
	require.Equal(t, models.PaymentStatusDefaulted, o.PaymentStatus)

	require.ErrorIs(t, sm.SetPayment(o, "refunded", true), assignment.ErrInvalidArgument)
}

func TestStateMachine_SetDelivery(t *testing.T) {
	var sm assignment.StateMachine
	o := &models.VideoOrder{Status: models.OrderStatusDone, DeliveryStatus: models.DeliveryStatusNotSent}

	require.NoError(t, sm.SetDelivery(o, models.DeliveryStatusUrgentRevision))
	require.Equal(t, models.DeliveryStatusUrgentRevision, o.DeliveryStatus)
	require.Equal(t, models.OrderStatusDone, o.Status, "delivery is independent of production status")

	require.ErrorIs(t, sm.SetDelivery(o, "lost"), assignment.ErrInvalidArgument)
}
