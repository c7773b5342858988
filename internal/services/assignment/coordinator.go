package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xelth-com/eckvideo/internal/metrics"
	"github.com/xelth-com/eckvideo/internal/models"
)

// Options holds the optional collaborators of a Coordinator.
type Options struct {
	Notifier Notifier
	Metrics  metrics.Collector
	Clock    Clock
}

// Coordinator is the only write path for order assignment state.
//
// Every operation is a single read-modify-write unit of work: the order row is
// loaded under lock, admission checks run against the same transaction, and the
// change is saved together with its audit event. Interactive requests and the
// reclamation sweep share the same release primitive.
type Coordinator struct {
	store    Store
	machine  StateMachine
	workload *WorkloadGovernor
	quota    *QuotaLimiter
	notifier Notifier
	metrics  metrics.Collector
	clock    Clock
}

// NewCoordinator wires the admission checks around store.
func NewCoordinator(store Store, workload *WorkloadGovernor, quota *QuotaLimiter, opts Options) *Coordinator {
	c := &Coordinator{
		store:    store,
		workload: workload,
		quota:    quota,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
	}
	if c.notifier == nil {
		c.notifier = NopNotifier{}
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNop()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

// releaseGuard decides inside the unit of work whether an order may be released.
// Returning false without an error turns the release into a silent no-op.
type releaseGuard func(o *models.VideoOrder) (bool, error)

// Assign gives order id to worker. An empty worker releases the order instead.
//
// Assignment is first-claim-wins: an order that already has a worker is rejected
// with ErrAlreadyClaimed whoever is asking and for whom. The quota check runs before the
// workload check so the more specific rejection is reported.
func (c *Coordinator) Assign(ctx context.Context, actor Actor, id uint, worker string) (*models.VideoOrder, error) {
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return c.Unassign(ctx, actor, id)
	}

	var result *models.VideoOrder
	err := c.store.Atomically(ctx, func(tx Tx) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.Worker() != "" {
			return fmt.Errorf("%w: order %d is held by %s", ErrAlreadyClaimed, id, o.Worker())
		}
		if !actor.IsAdmin() && actor.Name != worker {
			return forbidden("%s may only claim orders for themselves", actor.Name)
		}
		if err := tx.LockWorker(ctx, worker); err != nil {
			return fmt.Errorf("lock worker %s: %w", worker, err)
		}

		now := c.clock()
		if err := c.quota.validate(ctx, tx, worker, now); err != nil {
			return err
		}
		if err := c.workload.validate(ctx, tx, worker); err != nil {
			return err
		}

		before := TakeSnapshot(o)
		if err := c.machine.Claim(o, worker, now); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, o); err != nil {
			return fmt.Errorf("save order %d: %w", id, err)
		}
		if err := tx.RecordEvent(ctx, orderEvent(ActionClaim, actor, worker, before, o, now)); err != nil {
			return fmt.Errorf("record claim of order %d: %w", id, err)
		}
		result = o
		return nil
	})
	if err != nil {
		c.metrics.AssignmentRejected(rejectionReason(err))
		return nil, err
	}

	c.metrics.AssignmentAccepted()
	c.notify(ActionClaim, result, worker)
	return result, nil
}

// Unassign releases a claimed order back to unclaimed. No admission checks apply
// when capacity is being freed. Only the holder or an administrator may release.
func (c *Coordinator) Unassign(ctx context.Context, actor Actor, id uint) (*models.VideoOrder, error) {
	o, _, err := c.release(ctx, actor, id, ActionUnassign, func(o *models.VideoOrder) (bool, error) {
		if !c.machine.IsClaimed(o) {
			return false, &TransitionError{From: string(o.Status), To: string(models.OrderStatusUnclaimed), Reason: "the order is not claimed"}
		}
		if !actor.IsAdmin() && o.Worker() != actor.Name {
			return false, forbidden("%s does not hold order %d", actor.Name, id)
		}
		return true, nil
	})
	return o, err
}

// reclaimIfExpired releases id only if, under lock, it is still an active claim by
// worker that was taken before cutoff. Otherwise it is a no-op reporting false.
func (c *Coordinator) reclaimIfExpired(ctx context.Context, id uint, worker string, cutoff time.Time) (bool, error) {
	_, released, err := c.release(ctx, SystemActor, id, ActionReclaim, func(o *models.VideoOrder) (bool, error) {
		return isExpired(o, cutoff) && o.Worker() == worker, nil
	})
	if errors.Is(err, ErrNotFound) {
		// Soft deleted between the scan and the lock.
		return false, nil
	}
	return released, err
}

// forceRelease releases id if it is claimed at all. Releasing an unclaimed order is a no-op.
func (c *Coordinator) forceRelease(ctx context.Context, actor Actor, id uint, kind ActionKind) (*models.VideoOrder, bool, error) {
	return c.release(ctx, actor, id, kind, func(o *models.VideoOrder) (bool, error) {
		return c.machine.IsClaimed(o), nil
	})
}

// release is the single write path that clears an order's worker.
func (c *Coordinator) release(ctx context.Context, actor Actor, id uint, kind ActionKind, guard releaseGuard) (*models.VideoOrder, bool, error) {
	var (
		result   *models.VideoOrder
		worker   string
		released bool
	)
	err := c.store.Atomically(ctx, func(tx Tx) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		result = o

		proceed, err := guard(o)
		if err != nil || !proceed {
			return err
		}

		worker = o.Worker()
		before := TakeSnapshot(o)
		c.machine.Clear(o)
		if err := tx.SaveOrder(ctx, o); err != nil {
			return fmt.Errorf("save order %d: %w", id, err)
		}
		if err := tx.RecordEvent(ctx, orderEvent(kind, actor, worker, before, o, c.clock())); err != nil {
			return fmt.Errorf("record %s of order %d: %w", kind, id, err)
		}
		released = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if released {
		c.metrics.OrderReleased(string(kind))
		c.notify(kind, result, worker)
	}
	return result, released, nil
}

// UpdateStatus moves an order through the production lifecycle. Only the assigned worker may do so.
func (c *Coordinator) UpdateStatus(ctx context.Context, actor Actor, id uint, status models.OrderStatus) (*models.VideoOrder, error) {
	return c.mutate(ctx, actor, id, ActionStatusChange, func(o *models.VideoOrder, now time.Time) error {
		if o.Worker() == "" || o.Worker() != actor.Name {
			return forbidden("only the assigned worker may change the status of order %d", id)
		}
		return c.machine.TransitionStatus(o, status, now)
	})
}

// SetDeliverable records the produced video's URL. The holder or an administrator may set it.
func (c *Coordinator) SetDeliverable(ctx context.Context, actor Actor, id uint, url string) (*models.VideoOrder, error) {
	return c.mutate(ctx, actor, id, ActionDeliverableSet, func(o *models.VideoOrder, _ time.Time) error {
		if !actor.IsAdmin() && (o.Worker() == "" || o.Worker() != actor.Name) {
			return forbidden("only the assigned worker may attach a deliverable to order %d", id)
		}
		return c.machine.SetDeliverable(o, url)
	})
}

// UpdateDelivery changes the delivery status. Administrators only.
func (c *Coordinator) UpdateDelivery(ctx context.Context, actor Actor, id uint, status models.DeliveryStatus) (*models.VideoOrder, error) {
	if err := requireAdmin(actor, "changing delivery status"); err != nil {
		return nil, err
	}
	return c.mutate(ctx, actor, id, ActionDeliveryChange, func(o *models.VideoOrder, _ time.Time) error {
		return c.machine.SetDelivery(o, status)
	})
}

// UpdatePayment changes the payment status. Leaving a settled payment requires an administrator.
func (c *Coordinator) UpdatePayment(ctx context.Context, actor Actor, id uint, status models.PaymentStatus) (*models.VideoOrder, error) {
	return c.mutate(ctx, actor, id, ActionPaymentChange, func(o *models.VideoOrder, _ time.Time) error {
		return c.machine.SetPayment(o, status, actor.IsAdmin())
	})
}

// mutate applies fn to a locked order and persists it with an audit event.
func (c *Coordinator) mutate(ctx context.Context, actor Actor, id uint, kind ActionKind, fn func(o *models.VideoOrder, now time.Time) error) (*models.VideoOrder, error) {
	var result *models.VideoOrder
	err := c.store.Atomically(ctx, func(tx Tx) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		now := c.clock()
		before := TakeSnapshot(o)
		if err := fn(o, now); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, o); err != nil {
			return fmt.Errorf("save order %d: %w", id, err)
		}
		if err := tx.RecordEvent(ctx, orderEvent(kind, actor, o.Worker(), before, o, now)); err != nil {
			return fmt.Errorf("record %s of order %d: %w", kind, id, err)
		}
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateOrder stores a new unclaimed order. Administrators only.
func (c *Coordinator) CreateOrder(ctx context.Context, actor Actor, order *models.VideoOrder) (*models.VideoOrder, error) {
	if err := requireAdmin(actor, "creating orders"); err != nil {
		return nil, err
	}
	now := c.clock()
	o := order.Clone()
	o.ID = 0
	o.Status = models.OrderStatusUnclaimed
	o.AssignedWorker = nil
	o.AssignedAt = nil
	o.CompletedAt = nil
	o.ApplyDefaults(now)
	if !o.DeliveryStatus.Valid() || !o.PaymentStatus.Valid() {
		return nil, invalidArgument("unknown delivery or payment status")
	}

	err := c.store.Atomically(ctx, func(tx Tx) error {
		if err := tx.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return tx.RecordEvent(ctx, orderEvent(ActionCreate, actor, "", Snapshot{}, o, now))
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// SoftDelete hides an order from every assignment and reclamation path. Administrators only.
func (c *Coordinator) SoftDelete(ctx context.Context, actor Actor, id uint) error {
	if err := requireAdmin(actor, "deleting orders"); err != nil {
		return err
	}
	return c.store.Atomically(ctx, func(tx Tx) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.SoftDeleteOrder(ctx, id); err != nil {
			return fmt.Errorf("soft delete order %d: %w", id, err)
		}
		return tx.RecordEvent(ctx, orderEvent(ActionSoftDelete, actor, o.Worker(), TakeSnapshot(o), o, c.clock()))
	})
}

// GetOrder returns a single live order.
func (c *Coordinator) GetOrder(ctx context.Context, id uint) (*models.VideoOrder, error) {
	var result *models.VideoOrder
	err := c.store.Atomically(ctx, func(tx Tx) error {
		var err error
		result, err = tx.GetOrder(ctx, id)
		return err
	})
	return result, err
}

// ListOrders returns live orders matching filter.
func (c *Coordinator) ListOrders(ctx context.Context, filter OrderFilter) ([]models.VideoOrder, error) {
	var result []models.VideoOrder
	err := c.store.Atomically(ctx, func(tx Tx) error {
		var err error
		result, err = tx.ListOrders(ctx, filter)
		return err
	})
	return result, err
}

func (c *Coordinator) notify(kind ActionKind, o *models.VideoOrder, worker string) {
	if worker == "" {
		return
	}
	c.notifier.Notify(Notification{
		Type:        kind,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Worker:      worker,
		At:          c.clock(),
	})
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, ErrWorkloadCapExceeded):
		return "workload_cap"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
