package assignment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/eckvideo/internal/models"
)

const (
	minRestrictionDays = 1
	maxRestrictionDays = 30
)

// QuotaStatus describes a worker's standing against an administrator-imposed daily quota.
type QuotaStatus struct {
	Worker          string     `json:"worker"`
	Restricted      bool       `json:"restricted"`
	MaxPerDay       int        `json:"maxPerDay"`
	AssignedToday   int        `json:"assignedToday"`
	Remaining       int        `json:"remaining"`
	QuotaReached    bool       `json:"quotaReached"`
	RestrictionID   string     `json:"restrictionId,omitempty"`
	RestrictionEnds *time.Time `json:"restrictionEnds,omitempty"`
}

// QuotaLimiter enforces temporary daily quotas on flagged workers.
//
// A restriction lowers a worker's daily intake; it is not a ban. A restricted worker
// below today's count stays eligible, subject to WorkloadGovernor as usual.
type QuotaLimiter struct {
	store    Store
	policy   Policy
	clock    Clock
	timeZone string
}

// NewQuotaLimiter creates a limiter. timeZone is the IANA zone stored on new restrictions.
func NewQuotaLimiter(store Store, policy Policy, clock Clock, timeZone string) *QuotaLimiter {
	if policy == nil {
		policy = StaticPolicy{}
	}
	if clock == nil {
		clock = time.Now
	}
	if timeZone == "" {
		timeZone = "UTC"
	}
	return &QuotaLimiter{store: store, policy: policy, clock: clock, timeZone: timeZone}
}

// IsCurrentlyRestricted reports whether worker has a restriction in effect at now.
func (q *QuotaLimiter) IsCurrentlyRestricted(ctx context.Context, worker string, now time.Time) (bool, error) {
	var restricted bool
	err := q.store.Atomically(ctx, func(tx Tx) error {
		r, err := tx.FindActiveRestriction(ctx, worker, now)
		if err != nil {
			return fmt.Errorf("find restriction for %s: %w", worker, err)
		}
		restricted = r != nil
		return nil
	})
	return restricted, err
}

// DailyQuotaStatus computes how many orders worker may still receive today.
func (q *QuotaLimiter) DailyQuotaStatus(ctx context.Context, worker string, now time.Time) (QuotaStatus, error) {
	var status QuotaStatus
	err := q.store.Atomically(ctx, func(tx Tx) error {
		var err error
		status, err = q.dailyStatus(ctx, tx, worker, now)
		return err
	})
	return status, err
}

func (q *QuotaLimiter) dailyStatus(ctx context.Context, tx Tx, worker string, now time.Time) (QuotaStatus, error) {
	status := QuotaStatus{Worker: worker}

	r, err := tx.FindActiveRestriction(ctx, worker, now)
	if err != nil {
		return status, fmt.Errorf("find restriction for %s: %w", worker, err)
	}
	if r == nil {
		return status, nil
	}

	from, to := r.DayWindow(now)
	assigned, err := tx.CountAssignedBetween(ctx, worker, from, to)
	if err != nil {
		return status, fmt.Errorf("count today's orders for %s: %w", worker, err)
	}

	ends := r.EndDate
	status.Restricted = true
	status.MaxPerDay = r.MaxOrdersPerDay
	status.AssignedToday = assigned
	status.Remaining = r.MaxOrdersPerDay - assigned
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	status.QuotaReached = assigned >= r.MaxOrdersPerDay
	status.RestrictionID = r.ID
	status.RestrictionEnds = &ends
	return status, nil
}

// validate runs inside the caller's unit of work, after the worker lock is held.
func (q *QuotaLimiter) validate(ctx context.Context, tx Tx, worker string, now time.Time) error {
	status, err := q.dailyStatus(ctx, tx, worker, now)
	if err != nil {
		return err
	}
	if !status.QuotaReached {
		return nil
	}
	return &QuotaExceededError{
		Worker:          worker,
		MaxPerDay:       status.MaxPerDay,
		AssignedToday:   status.AssignedToday,
		Remaining:       status.Remaining,
		RestrictionEnds: *status.RestrictionEnds,
	}
}

// SetRestriction imposes a daily quota on worker for the next days days.
// Any earlier restriction for the same worker is deactivated under the worker's lock,
// so at most one stays active. maxPerDay 0 means the policy default.
func (q *QuotaLimiter) SetRestriction(ctx context.Context, actor Actor, worker string, days, maxPerDay int) (*models.QuotaRestriction, error) {
	if err := requireAdmin(actor, "setting a quota restriction"); err != nil {
		return nil, err
	}
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return nil, invalidArgument("worker name is required")
	}
	if days < minRestrictionDays || days > maxRestrictionDays {
		return nil, invalidArgument("days must be between %d and %d, got %d", minRestrictionDays, maxRestrictionDays, days)
	}
	if maxPerDay == 0 {
		maxPerDay = q.policy.DefaultMaxOrdersPerDay()
	}
	if maxPerDay < 1 {
		return nil, invalidArgument("maxOrdersPerDay must be at least 1, got %d", maxPerDay)
	}

	now := q.clock()
	restriction := &models.QuotaRestriction{
		ID:              uuid.NewString(),
		WorkerName:      worker,
		StartDate:       now,
		EndDate:         now.AddDate(0, 0, days),
		MaxOrdersPerDay: maxPerDay,
		TimeZone:        q.timeZone,
		IsActive:        true,
		CreatedBy:       actor.Name,
		CreatedAt:       now,
	}

	err := q.store.Atomically(ctx, func(tx Tx) error {
		if err := tx.LockWorker(ctx, worker); err != nil {
			return fmt.Errorf("lock worker %s: %w", worker, err)
		}
		if _, err := tx.DeactivateRestrictions(ctx, worker); err != nil {
			return fmt.Errorf("deactivate restrictions for %s: %w", worker, err)
		}
		if err := tx.SaveRestriction(ctx, restriction); err != nil {
			return fmt.Errorf("save restriction for %s: %w", worker, err)
		}
		return tx.RecordEvent(ctx, restrictionEvent(ActionRestrictionSet, actor, restriction, now))
	})
	if err != nil {
		return nil, err
	}
	return restriction, nil
}

// RemoveRestriction deactivates worker's restriction in effect.
func (q *QuotaLimiter) RemoveRestriction(ctx context.Context, actor Actor, worker string) error {
	if err := requireAdmin(actor, "removing a quota restriction"); err != nil {
		return err
	}
	now := q.clock()
	return q.store.Atomically(ctx, func(tx Tx) error {
		if err := tx.LockWorker(ctx, worker); err != nil {
			return fmt.Errorf("lock worker %s: %w", worker, err)
		}
		r, err := tx.FindActiveRestriction(ctx, worker, now)
		if err != nil {
			return fmt.Errorf("find restriction for %s: %w", worker, err)
		}
		if r == nil {
			return fmt.Errorf("%w for worker %s", ErrNoActiveRestriction, worker)
		}
		if _, err := tx.DeactivateRestrictions(ctx, worker); err != nil {
			return fmt.Errorf("deactivate restrictions for %s: %w", worker, err)
		}
		r.IsActive = false
		return tx.RecordEvent(ctx, restrictionEvent(ActionRestrictionRemoved, actor, r, now))
	})
}

// ListActiveRestrictions returns every restriction currently in effect.
func (q *QuotaLimiter) ListActiveRestrictions(ctx context.Context, actor Actor) ([]models.QuotaRestriction, error) {
	if err := requireAdmin(actor, "listing quota restrictions"); err != nil {
		return nil, err
	}
	var out []models.QuotaRestriction
	err := q.store.Atomically(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListActiveRestrictions(ctx, q.clock())
		return err
	})
	return out, err
}

// CheckWorkerQuota returns today's quota standing. Workers may check themselves; admins anyone.
func (q *QuotaLimiter) CheckWorkerQuota(ctx context.Context, actor Actor, worker string) (QuotaStatus, error) {
	if !actor.IsAdmin() && actor.Name != worker {
		return QuotaStatus{}, forbidden("%s may not read the quota of %s", actor.Name, worker)
	}
	return q.DailyQuotaStatus(ctx, worker, q.clock())
}
