package assignment

import (
	"context"
	"fmt"

	"github.com/xelth-com/eckvideo/internal/models"
)

// MaxActiveOrders is the number of active orders any single worker may hold at once.
// It is the same for every worker; per-worker ceilings are QuotaLimiter's job.
const MaxActiveOrders = 3

// activeWorkload defines "active": in production or revising, or flagged as an urgent revision.
// Cancelled deliveries are not excluded.
var activeWorkload = ActiveCriteria{
	Statuses:   []models.OrderStatus{models.OrderStatusInProgress, models.OrderStatusRevising},
	Deliveries: []models.DeliveryStatus{models.DeliveryStatusUrgentRevision},
}

// WorkloadStatus is a worker's current load against the cap.
type WorkloadStatus struct {
	Worker    string `json:"worker"`
	Active    int    `json:"active"`
	Cap       int    `json:"cap"`
	Available int    `json:"available"`
}

// WorkloadGovernor admits or rejects new assignments against MaxActiveOrders.
type WorkloadGovernor struct {
	store Store
}

// NewWorkloadGovernor creates a governor reading counts from store.
func NewWorkloadGovernor(store Store) *WorkloadGovernor {
	return &WorkloadGovernor{store: store}
}

// ActiveCount returns how many active orders worker currently holds.
func (g *WorkloadGovernor) ActiveCount(ctx context.Context, worker string) (int, error) {
	var count int
	err := g.store.Atomically(ctx, func(tx Tx) error {
		var err error
		count, err = g.activeCount(ctx, tx, worker)
		return err
	})
	return count, err
}

// CanAcceptNewTask reports whether worker is below the cap.
func (g *WorkloadGovernor) CanAcceptNewTask(ctx context.Context, worker string) (bool, error) {
	count, err := g.ActiveCount(ctx, worker)
	if err != nil {
		return false, err
	}
	return count < MaxActiveOrders, nil
}

// ValidateCanAcceptNewTask fails with a *WorkloadCapError when worker is at the cap.
func (g *WorkloadGovernor) ValidateCanAcceptNewTask(ctx context.Context, worker string) error {
	return g.store.Atomically(ctx, func(tx Tx) error {
		return g.validate(ctx, tx, worker)
	})
}

// Status returns the worker's load for display.
func (g *WorkloadGovernor) Status(ctx context.Context, worker string) (WorkloadStatus, error) {
	count, err := g.ActiveCount(ctx, worker)
	if err != nil {
		return WorkloadStatus{}, err
	}
	available := MaxActiveOrders - count
	if available < 0 {
		available = 0
	}
	return WorkloadStatus{Worker: worker, Active: count, Cap: MaxActiveOrders, Available: available}, nil
}

func (g *WorkloadGovernor) activeCount(ctx context.Context, tx Tx, worker string) (int, error) {
	count, err := tx.CountActive(ctx, worker, activeWorkload)
	if err != nil {
		return 0, fmt.Errorf("count active orders for %s: %w", worker, err)
	}
	return count, nil
}

// validate runs inside the caller's unit of work, after the worker lock is held.
func (g *WorkloadGovernor) validate(ctx context.Context, tx Tx, worker string) error {
	count, err := g.activeCount(ctx, tx, worker)
	if err != nil {
		return err
	}
	if count >= MaxActiveOrders {
		return &WorkloadCapError{Worker: worker, Current: count, Cap: MaxActiveOrders}
	}
	return nil
}
