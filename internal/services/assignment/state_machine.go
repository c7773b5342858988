package assignment

import (
	"strings"
	"time"

	"github.com/xelth-com/eckvideo/internal/models"
)

// StateMachine validates and applies lifecycle changes to a single order.
//
// It is pure: it never touches a store, so every rule can be checked in isolation.
// The order lifecycle is
//
//	unclaimed -> in_progress <-> revising -> done / revision_done
//
// Completed orders stay mutable for corrections. Clearing the worker is a hard
// reset back to unclaimed from any status, not a reverse transition.
type StateMachine struct{}

// claimedStatuses are the statuses an order cannot silently leave for unclaimed.
var claimedStatuses = []models.OrderStatus{
	models.OrderStatusInProgress,
	models.OrderStatusRevising,
	models.OrderStatusDone,
	models.OrderStatusRevisionDone,
}

// Claim gives an unclaimed order to worker and stamps assignedAt.
func (StateMachine) Claim(o *models.VideoOrder, worker string, now time.Time) error {
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return invalidArgument("worker name is required to claim an order")
	}
	if o.Worker() != "" {
		return ErrAlreadyClaimed
	}

	at := now
	o.AssignedWorker = &worker
	o.AssignedAt = &at
	if o.Status == models.OrderStatusUnclaimed || o.Status == "" {
		o.Status = models.OrderStatusInProgress
	}
	return nil
}

// Clear removes the worker and resets the order to unclaimed regardless of its status.
// It reports whether anything changed.
func (StateMachine) Clear(o *models.VideoOrder) bool {
	changed := o.AssignedWorker != nil || o.AssignedAt != nil || o.Status != models.OrderStatusUnclaimed
	o.AssignedWorker = nil
	o.AssignedAt = nil
	o.Status = models.OrderStatusUnclaimed
	return changed
}

// IsClaimed reports whether the order currently holds a worker or a claimed status.
func (StateMachine) IsClaimed(o *models.VideoOrder) bool {
	return o.Worker() != "" || o.Status != models.OrderStatusUnclaimed
}

// TransitionStatus moves the order to a new production status.
func (StateMachine) TransitionStatus(o *models.VideoOrder, to models.OrderStatus, now time.Time) error {
	if !to.Valid() {
		return invalidArgument("unknown order status %q", to)
	}
	from := o.Status

	if to.IsCompleted() && !o.HasDeliverable() {
		return &TransitionError{From: string(from), To: string(to), Reason: "a deliverable URL is required before completion"}
	}
	if to == models.OrderStatusUnclaimed {
		if o.Worker() != "" && containsStatus(claimedStatuses, from) {
			return &TransitionError{From: string(from), To: string(to), Reason: "a claimed order can only be released by unassigning it"}
		}
	} else if o.Worker() == "" {
		return &TransitionError{From: string(from), To: string(to), Reason: "the order has no assigned worker"}
	}

	o.Status = to
	if to.IsCompleted() && o.CompletedAt == nil {
		at := now
		o.CompletedAt = &at
	}
	return nil
}

// SetDeliverable records the URL of the produced video.
func (StateMachine) SetDeliverable(o *models.VideoOrder, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		if o.Status.IsCompleted() {
			return &TransitionError{From: string(o.Status), To: string(o.Status), Reason: "a completed order must keep its deliverable URL"}
		}
		o.DeliverableURL = nil
		return nil
	}
	o.DeliverableURL = &url
	return nil
}

// SetDelivery changes the delivery axis. It is independent of the production status.
func (StateMachine) SetDelivery(o *models.VideoOrder, d models.DeliveryStatus) error {
	if !d.Valid() {
		return invalidArgument("unknown delivery status %q", d)
	}
	o.DeliveryStatus = d
	return nil
}

// SetPayment changes the payment axis. A settled payment (paid or defaulted)
// can only be changed by a privileged caller.
func (StateMachine) SetPayment(o *models.VideoOrder, p models.PaymentStatus, privileged bool) error {
	if !p.Valid() {
		return invalidArgument("unknown payment status %q", p)
	}
	if o.PaymentStatus.IsFinal() && p != o.PaymentStatus && !privileged {
		return &TransitionError{From: string(o.PaymentStatus), To: string(p), Reason: "settled payments can only be corrected by an administrator"}
	}
	o.PaymentStatus = p
	return nil
}

func containsStatus(set []models.OrderStatus, s models.OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
