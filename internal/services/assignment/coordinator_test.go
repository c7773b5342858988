package assignment_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
)

func TestAssign_FirstClaimWins(t *testing.T) {
	h := newHarness(t)
	o := h.newOrder(t)

	got, err := h.coord.Assign(h.ctx, alice, o.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusInProgress, got.Status)
	require.Equal(t, "alice", got.Worker())

	_, err = h.coord.Assign(h.ctx, bob, o.ID, "bob")
	require.ErrorIs(t, err, assignment.ErrAlreadyClaimed)

	_, err = h.coord.Unassign(h.ctx, alice, o.ID)
	require.NoError(t, err)

	got, err = h.coord.Assign(h.ctx, bob, o.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", got.Worker())
	require.Equal(t, "bob", h.reload(t, o.ID).Worker())
}

func TestAssign_UnassignRoundTrip(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, alice)

	got, err := h.coord.Unassign(h.ctx, alice, o.ID)
	require.NoError(t, err)
	requireUnclaimed(t, got)
	requireUnclaimed(t, h.reload(t, o.ID))
}

func TestAssign_EmptyWorkerUnassigns(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, alice)

	got, err := h.coord.Assign(h.ctx, admin, o.ID, "")
	require.NoError(t, err)
	requireUnclaimed(t, got)
}

func TestAssign_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.coord.Assign(h.ctx, alice, 999, "alice")
	require.ErrorIs(t, err, assignment.ErrNotFound)
}

func TestAssign_WorkloadCap(t *testing.T) {
	h := newHarness(t)
	held := make([]*models.VideoOrder, 0, assignment.MaxActiveOrders)
	for i := 0; i < assignment.MaxActiveOrders; i++ {
		held = append(held, h.claimed(t, alice))
	}

	extra := h.newOrder(t)
	_, err := h.coord.Assign(h.ctx, alice, extra.ID, "alice")
	require.ErrorIs(t, err, assignment.ErrWorkloadCapExceeded)

	var capErr *assignment.WorkloadCapError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, 3, capErr.Current)
	require.Equal(t, 3, capErr.Cap)
	requireUnclaimed(t, h.reload(t, extra.ID))

	// Finishing one order frees a slot; the finished order keeps its worker.
	h.complete(t, alice, held[0].ID)
	_, err = h.coord.Assign(h.ctx, alice, extra.ID, "alice")
	require.NoError(t, err)

	count, err := h.workload.ActiveCount(h.ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestAssign_UrgentRevisionCountsAsActive(t *testing.T) {
	h := newHarness(t)
	a := h.claimed(t, alice)
	h.complete(t, alice, a.ID)

	count, err := h.workload.ActiveCount(h.ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	_, err = h.coord.UpdateDelivery(h.ctx, admin, a.ID, models.DeliveryStatusUrgentRevision)
	require.NoError(t, err)

	status, err := h.workload.Status(h.ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, assignment.WorkloadStatus{Worker: "alice", Active: 1, Cap: 3, Available: 2}, status)
}

func TestAssign_CapHoldsUnderConcurrentClaims(t *testing.T) {
	h := newHarness(t)
	orders := make([]*models.VideoOrder, 10)
	for i := range orders {
		orders[i] = h.newOrder(t)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		capped    int
	)
	for _, o := range orders {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := h.coord.Assign(h.ctx, alice, id, "alice")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, assignment.ErrWorkloadCapExceeded):
				capped++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(o.ID)
	}
	wg.Wait()

	require.Equal(t, assignment.MaxActiveOrders, succeeded)
	require.Equal(t, len(orders)-assignment.MaxActiveOrders, capped)

	ok, err := h.workload.CanAcceptNewTask(h.ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)
	require.ErrorIs(t, h.workload.ValidateCanAcceptNewTask(h.ctx, "alice"), assignment.ErrWorkloadCapExceeded)
}

func TestAssign_SameOrderOnlyOneWinner(t *testing.T) {
	h := newHarness(t)
	o := h.newOrder(t)

	workers := []string{"w1", "w2", "w3", "w4", "w5"}
	errs := make([]error, len(workers))
	var wg sync.WaitGroup
	for i, name := range workers {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = h.coord.Assign(h.ctx, assignment.Actor{Name: name, Role: models.RoleWorker}, o.ID, name)
		}(i, name)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		require.ErrorIs(t, err, assignment.ErrAlreadyClaimed)
	}
	require.Equal(t, 1, winners)
}

func TestAssign_NonAdminMayOnlyClaimForThemselves(t *testing.T) {
	h := newHarness(t)
	o := h.newOrder(t)

	_, err := h.coord.Assign(h.ctx, alice, o.ID, "bob")
	require.ErrorIs(t, err, assignment.ErrForbidden)

	got, err := h.coord.Assign(h.ctx, admin, o.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", got.Worker())
}

func TestAssign_AlreadyClaimedWinsOverForbidden(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, carol)

	_, err := h.coord.Assign(h.ctx, alice, o.ID, "bob")
	require.ErrorIs(t, err, assignment.ErrAlreadyClaimed)
	require.NotErrorIs(t, err, assignment.ErrForbidden)
	require.Equal(t, "carol", h.reload(t, o.ID).Worker())
}

func TestUnassign_Rules(t *testing.T) {
	h := newHarness(t)

	free := h.newOrder(t)
	_, err := h.coord.Unassign(h.ctx, admin, free.ID)
	require.ErrorIs(t, err, assignment.ErrInvalidTransition)

	o := h.claimed(t, alice)
	_, err = h.coord.Unassign(h.ctx, bob, o.ID)
	require.ErrorIs(t, err, assignment.ErrForbidden)

	_, err = h.coord.Unassign(h.ctx, admin, o.ID)
	require.NoError(t, err)
}

func TestUnassign_CompletedOrderIsHardReset(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, alice)
	h.complete(t, alice, o.ID)

	got, err := h.coord.Unassign(h.ctx, alice, o.ID)
	require.NoError(t, err)
	requireUnclaimed(t, got)
}

func TestUpdateStatus_OnlyAssignee(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, alice)

	_, err := h.coord.UpdateStatus(h.ctx, bob, o.ID, models.OrderStatusRevising)
	require.ErrorIs(t, err, assignment.ErrForbidden)
	_, err = h.coord.UpdateStatus(h.ctx, admin, o.ID, models.OrderStatusRevising)
	require.ErrorIs(t, err, assignment.ErrForbidden)

	got, err := h.coord.UpdateStatus(h.ctx, alice, o.ID, models.OrderStatusRevising)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusRevising, got.Status)

	_, err = h.coord.UpdateStatus(h.ctx, alice, o.ID, models.OrderStatusDone)
	require.ErrorIs(t, err, assignment.ErrInvalidTransition)
	require.Equal(t, models.OrderStatusRevising, h.reload(t, o.ID).Status)
}

func TestUpdatePayment_SettledNeedsAdmin(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, alice)

	_, err := h.coord.UpdatePayment(h.ctx, alice, o.ID, models.PaymentStatusPaid)
	require.NoError(t, err)
	_, err = h.coord.UpdatePayment(h.ctx, alice, o.ID, models.PaymentStatusUnpaid)
	require.ErrorIs(t, err, assignment.ErrInvalidTransition)

	got, err := h.coord.UpdatePayment(h.ctx, admin, o.ID, models.PaymentStatusUnpaid)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusUnpaid, got.PaymentStatus)
}

func TestUpdateDelivery_AdminOnly(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, alice)

	_, err := h.coord.UpdateDelivery(h.ctx, alice, o.ID, models.DeliveryStatusSent)
	require.ErrorIs(t, err, assignment.ErrForbidden)
}

func TestSoftDelete_HidesOrder(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, alice)

	require.ErrorIs(t, h.coord.SoftDelete(h.ctx, alice, o.ID), assignment.ErrForbidden)
	require.NoError(t, h.coord.SoftDelete(h.ctx, admin, o.ID))

	_, err := h.coord.GetOrder(h.ctx, o.ID)
	require.ErrorIs(t, err, assignment.ErrNotFound)
	_, err = h.coord.Assign(h.ctx, bob, o.ID, "bob")
	require.ErrorIs(t, err, assignment.ErrNotFound)

	count, err := h.workload.ActiveCount(h.ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, count, "soft-deleted orders do not count as active")

	list, err := h.coord.ListOrders(h.ctx, assignment.OrderFilter{})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestCreateOrder_ResetsAssignmentFields(t *testing.T) {
	h := newHarness(t)
	worker := "mallory"

	_, err := h.coord.CreateOrder(h.ctx, alice, &models.VideoOrder{Title: "x"})
	require.ErrorIs(t, err, assignment.ErrForbidden)

	o, err := h.coord.CreateOrder(h.ctx, admin, &models.VideoOrder{
		Title:          "x",
		Status:         models.OrderStatusDone,
		AssignedWorker: &worker,
	})
	require.NoError(t, err)
	require.NotZero(t, o.ID)
	require.NotEmpty(t, o.OrderNumber)
	requireUnclaimed(t, o)
	require.Equal(t, models.DeliveryStatusNotSent, o.DeliveryStatus)
	require.Equal(t, models.PaymentStatusUnpaid, o.PaymentStatus)
}

func TestListOrders_Filter(t *testing.T) {
	h := newHarness(t)
	h.claimed(t, alice)
	h.claimed(t, bob)
	h.newOrder(t)

	mine, err := h.coord.ListOrders(h.ctx, assignment.OrderFilter{Worker: "alice"})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	free, err := h.coord.ListOrders(h.ctx, assignment.OrderFilter{Status: models.OrderStatusUnclaimed})
	require.NoError(t, err)
	require.Len(t, free, 1)

	limited, err := h.coord.ListOrders(h.ctx, assignment.OrderFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestAssign_RecordsAuditAndNotifies(t *testing.T) {
	h := newHarness(t)
	o := h.claimed(t, alice)
	_, err := h.coord.Unassign(h.ctx, alice, o.ID)
	require.NoError(t, err)

	var kinds []string
	var claim models.AssignmentEvent
	for _, e := range h.store.Events() {
		if e.OrderID != o.ID {
			continue
		}
		kinds = append(kinds, e.Action)
		if e.Action == string(assignment.ActionClaim) {
			claim = e
		}
	}
	require.Equal(t, []string{"create", "claim", "unassign"}, kinds)
	require.Equal(t, "alice", claim.WorkerName)
	require.Equal(t, "alice", claim.Actor)

	var changes map[string]assignment.FieldChange
	require.NoError(t, json.Unmarshal(claim.Changes, &changes))
	require.Equal(t, "alice", changes["assignedWorker"].To)
	require.Equal(t, "unclaimed", changes["status"].From)
	require.Equal(t, "in_progress", changes["status"].To)

	sent := h.notifier.All()
	require.Len(t, sent, 2)
	require.Equal(t, assignment.ActionClaim, sent[0].Type)
	require.Equal(t, assignment.ActionUnassign, sent[1].Type)
	require.Equal(t, "alice", sent[1].Worker)
}

func TestAssign_RejectionLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < assignment.MaxActiveOrders; i++ {
		h.claimed(t, alice)
	}
	before := len(h.store.Events())

	o := h.newOrder(t)
	_, err := h.coord.Assign(h.ctx, alice, o.ID, "alice")
	require.Error(t, err)
	require.Len(t, h.store.Events(), before+1, fmt.Sprintf("only the create event of order %d is new", o.ID))
}
