package assignment

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/xelth-com/eckvideo/internal/metrics"
	"github.com/xelth-com/eckvideo/internal/models"
	"golang.org/x/sync/errgroup"
)

// reclaimableStatuses are the only statuses a stale claim can be reclaimed from.
var reclaimableStatuses = []models.OrderStatus{models.OrderStatusInProgress, models.OrderStatusRevising}

// SweepResult summarizes one reclamation sweep.
type SweepResult struct {
	StartedAt        time.Time     `json:"startedAt"`
	Duration         time.Duration `json:"duration"`
	Cutoff           time.Time     `json:"cutoff"`
	Scanned          int           `json:"scanned"`
	Reclaimed        int           `json:"reclaimed"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	DeadlineExceeded bool          `json:"deadlineExceeded"`
}

// ReclamationStatus is the operational view of the scheduler.
type ReclamationStatus struct {
	Running     bool          `json:"running"`
	Interval    time.Duration `json:"interval"`
	Timeout     time.Duration `json:"timeout"`
	LastSweepAt *time.Time    `json:"lastSweepAt,omitempty"`
	LastResult  *SweepResult  `json:"lastResult,omitempty"`
	NextSweepAt *time.Time    `json:"nextSweepAt,omitempty"`
}

// Reclaimer periodically returns stale claims to the unclaimed pool.
//
// It has no write path of its own: each reset goes through the Coordinator's
// release primitive, which re-checks expiry under the order's lock. A worker who
// finishes or releases an order just before the sweep reaches it is left alone.
type Reclaimer struct {
	coordinator *Coordinator
	store       Store
	policy      Policy
	interval    time.Duration
	clock       Clock
	metrics     metrics.Collector

	mu      sync.Mutex
	running bool
	last    *SweepResult
	nextAt  time.Time
	stop    chan struct{}
	done    chan struct{}
}

// NewReclaimer creates a scheduler that sweeps every interval.
func NewReclaimer(coordinator *Coordinator, policy Policy, interval time.Duration) *Reclaimer {
	if policy == nil {
		policy = StaticPolicy{}
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Reclaimer{
		coordinator: coordinator,
		store:       coordinator.store,
		policy:      policy,
		interval:    interval,
		clock:       coordinator.clock,
		metrics:     coordinator.metrics,
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled or Stop is called.
func (r *Reclaimer) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.nextAt = r.clock().Add(r.interval)
	stop, done := r.stop, r.done
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			if r.done == done {
				r.running = false
			}
			r.mu.Unlock()
			close(done)
		}()
		log.Printf("♻️ Reclamation scheduler started (interval %s, timeout %s)", r.interval, r.policy.ReclaimTimeout())

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := r.Sweep(ctx); err != nil {
					log.Printf("❌ Reclamation sweep failed: %v", err)
				}
				r.mu.Lock()
				r.nextAt = r.clock().Add(r.interval)
				r.mu.Unlock()
			case <-stop:
				log.Println("🛑 Reclamation scheduler stopped")
				return
			case <-ctx.Done():
				log.Println("🛑 Reclamation scheduler stopped")
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to return.
func (r *Reclaimer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
}

// Sweep resets every order whose claim is older than the reclaim timeout.
//
// The sweep runs under the policy's deadline. Per-order failures are logged and
// counted but never abort the sweep; a failed order is picked up on the next tick.
// Only a failure to list expired orders is returned as an error.
func (r *Reclaimer) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.policy.SweepDeadline())
	defer cancel()

	started := r.clock()
	result := SweepResult{StartedAt: started, Cutoff: started.Add(-r.policy.ReclaimTimeout())}

	var expired []models.VideoOrder
	err := r.store.Atomically(ctx, func(tx Tx) error {
		var err error
		expired, err = tx.FindExpired(ctx, result.Cutoff, reclaimableStatuses)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("find expired orders: %w", err)
	}
	result.Scanned = len(expired)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.policy.SweepConcurrency())

	for i := range expired {
		order := expired[i]
		g.Go(func() error {
			outcome := r.resetOne(ctx, order, result.Cutoff)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeReclaimed:
				result.Reclaimed++
			case outcomeFailed:
				result.Failed++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	result.DeadlineExceeded = ctx.Err() != nil
	result.Duration = r.clock().Sub(started)
	r.metrics.SweepCompleted(result.Duration.Seconds(), result.Scanned, result.Reclaimed, result.Failed)

	if result.Scanned > 0 {
		log.Printf("♻️ Reclamation: scanned %d, reclaimed %d, skipped %d, failed %d (cutoff %s)",
			result.Scanned, result.Reclaimed, result.Skipped, result.Failed, result.Cutoff.Format(time.RFC3339))
	}
	if result.DeadlineExceeded {
		log.Printf("⚠️ Reclamation: sweep deadline of %s reached, remaining orders wait for the next tick", r.policy.SweepDeadline())
	}

	r.mu.Lock()
	last := result
	r.last = &last
	r.mu.Unlock()

	return result, nil
}

type resetOutcome int

const (
	outcomeSkipped resetOutcome = iota
	outcomeReclaimed
	outcomeFailed
)

func (r *Reclaimer) resetOne(ctx context.Context, order models.VideoOrder, cutoff time.Time) resetOutcome {
	if ctx.Err() != nil {
		return outcomeSkipped
	}
	released, err := r.coordinator.reclaimIfExpired(ctx, order.ID, order.Worker(), cutoff)
	if err != nil {
		log.Printf("⚠️ Reclamation: failed to reset order %d (%s): %v", order.ID, order.OrderNumber, err)
		return outcomeFailed
	}
	if released {
		return outcomeReclaimed
	}
	return outcomeSkipped
}

// IsExpired reports whether order id is an active claim older than the reclaim timeout.
func (r *Reclaimer) IsExpired(ctx context.Context, id uint) (bool, error) {
	cutoff := r.clock().Add(-r.policy.ReclaimTimeout())
	var expired bool
	err := r.store.Atomically(ctx, func(tx Tx) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		expired = isExpired(o, cutoff)
		return nil
	})
	return expired, err
}

// ManualReset releases order id on behalf of an operator. Resetting an
// unclaimed order is a no-op, not an error.
func (r *Reclaimer) ManualReset(ctx context.Context, actor Actor, id uint) (*models.VideoOrder, error) {
	if err := requireAdmin(actor, "manual reset"); err != nil {
		return nil, err
	}
	o, _, err := r.coordinator.forceRelease(ctx, actor, id, ActionManualReset)
	return o, err
}

// Status returns the scheduler's current operational state.
func (r *Reclaimer) Status() ReclamationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := ReclamationStatus{
		Running:  r.running,
		Interval: r.interval,
		Timeout:  r.policy.ReclaimTimeout(),
	}
	if r.last != nil {
		last := *r.last
		at := last.StartedAt
		status.LastResult = &last
		status.LastSweepAt = &at
	}
	if r.running {
		next := r.nextAt
		status.NextSweepAt = &next
	}
	return status
}

// isExpired is the reclamation predicate shared by the scan, the locked re-check and IsExpired.
func isExpired(o *models.VideoOrder, cutoff time.Time) bool {
	if o.IsSoftDeleted() || o.Worker() == "" || o.AssignedAt == nil {
		return false
	}
	return containsStatus(reclaimableStatuses, o.Status) && o.AssignedAt.Before(cutoff)
}
