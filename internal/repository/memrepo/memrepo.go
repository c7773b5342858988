// Package memrepo is an in-memory assignment.Store.
//
// Units of work are serialized by a single mutex and run against a private copy
// of the data that replaces the live state only on success, so a failed unit of
// work leaves nothing behind.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
	"gorm.io/gorm"
)

// Store keeps orders, restrictions and audit events in memory.
type Store struct {
	mu sync.Mutex

	orders       map[uint]*models.VideoOrder
	restrictions map[string]*models.QuotaRestriction
	events       []models.AssignmentEvent
	nextOrderID  uint
	nextEventID  uint
}

var _ assignment.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		orders:       make(map[uint]*models.VideoOrder),
		restrictions: make(map[string]*models.QuotaRestriction),
		nextOrderID:  1,
		nextEventID:  1,
	}
}

// Atomically runs fn against a private copy and publishes it when fn succeeds.
func (s *Store) Atomically(ctx context.Context, fn func(tx assignment.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

// Put stores a copy of order as-is, assigning an ID when it has none. Used for fixtures.
func (s *Store) Put(order *models.VideoOrder) *models.VideoOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := order.Clone()
	o.ApplyDefaults(time.Now())
	if o.ID == 0 {
		o.ID = s.nextOrderID
	}
	if o.ID >= s.nextOrderID {
		s.nextOrderID = o.ID + 1
	}
	s.orders[o.ID] = o
	return o.Clone()
}

// Order returns a copy of the stored order including soft-deleted ones.
func (s *Store) Order(id uint) (*models.VideoOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// Events returns a copy of the recorded audit events in insertion order.
func (s *Store) Events() []models.AssignmentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AssignmentEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) begin() *memTx {
	tx := &memTx{
		orders:       make(map[uint]*models.VideoOrder, len(s.orders)),
		restrictions: make(map[string]*models.QuotaRestriction, len(s.restrictions)),
		nextOrderID:  s.nextOrderID,
		nextEventID:  s.nextEventID,
	}
	for id, o := range s.orders {
		tx.orders[id] = o.Clone()
	}
	for id, r := range s.restrictions {
		c := *r
		tx.restrictions[id] = &c
	}
	return tx
}

func (s *Store) commit(tx *memTx) {
	s.orders = tx.orders
	s.restrictions = tx.restrictions
	s.events = append(s.events, tx.events...)
	s.nextOrderID = tx.nextOrderID
	s.nextEventID = tx.nextEventID
}

// memTx is one unit of work over a private copy of the store.
type memTx struct {
	orders       map[uint]*models.VideoOrder
	restrictions map[string]*models.QuotaRestriction
	events       []models.AssignmentEvent
	nextOrderID  uint
	nextEventID  uint
}

var _ assignment.Tx = (*memTx)(nil)

func (tx *memTx) GetOrder(_ context.Context, id uint) (*models.VideoOrder, error) {
	o, ok := tx.orders[id]
	if !ok || o.IsSoftDeleted() {
		return nil, fmt.Errorf("%w: order %d", assignment.ErrNotFound, id)
	}
	return o.Clone(), nil
}

func (tx *memTx) SaveOrder(_ context.Context, order *models.VideoOrder) error {
	if _, ok := tx.orders[order.ID]; !ok {
		return fmt.Errorf("%w: order %d", assignment.ErrNotFound, order.ID)
	}
	o := order.Clone()
	o.UpdatedAt = time.Now()
	tx.orders[o.ID] = o
	return nil
}

func (tx *memTx) CreateOrder(_ context.Context, order *models.VideoOrder) error {
	order.ID = tx.nextOrderID
	tx.nextOrderID++
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	tx.orders[order.ID] = order.Clone()
	return nil
}

func (tx *memTx) ListOrders(_ context.Context, filter assignment.OrderFilter) ([]models.VideoOrder, error) {
	out := make([]models.VideoOrder, 0)
	for _, o := range tx.liveOrders() {
		if filter.Worker != "" && o.Worker() != filter.Worker {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, *o.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (tx *memTx) CountActive(_ context.Context, worker string, criteria assignment.ActiveCriteria) (int, error) {
	count := 0
	for _, o := range tx.liveOrders() {
		if o.Worker() != worker {
			continue
		}
		if containsStatus(criteria.Statuses, o.Status) || containsDelivery(criteria.Deliveries, o.DeliveryStatus) {
			count++
		}
	}
	return count, nil
}

func (tx *memTx) CountAssignedBetween(_ context.Context, worker string, from, to time.Time) (int, error) {
	count := 0
	for _, o := range tx.liveOrders() {
		if o.Worker() != worker || o.AssignedAt == nil {
			continue
		}
		if !o.AssignedAt.Before(from) && o.AssignedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (tx *memTx) FindExpired(_ context.Context, cutoff time.Time, statuses []models.OrderStatus) ([]models.VideoOrder, error) {
	out := make([]models.VideoOrder, 0)
	for _, o := range tx.liveOrders() {
		if o.Worker() == "" || o.AssignedAt == nil || !o.AssignedAt.Before(cutoff) {
			continue
		}
		if containsStatus(statuses, o.Status) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(*out[j].AssignedAt) })
	return out, nil
}

func (tx *memTx) SoftDeleteOrder(_ context.Context, id uint) error {
	o, ok := tx.orders[id]
	if !ok || o.IsSoftDeleted() {
		return fmt.Errorf("%w: order %d", assignment.ErrNotFound, id)
	}
	o.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

// LockWorker is a no-op: the store mutex already serializes units of work.
func (tx *memTx) LockWorker(context.Context, string) error {
	return nil
}

func (tx *memTx) FindActiveRestriction(_ context.Context, worker string, now time.Time) (*models.QuotaRestriction, error) {
	var found *models.QuotaRestriction
	for _, r := range tx.restrictions {
		if r.WorkerName != worker || !r.InEffect(now) {
			continue
		}
		if found == nil || r.CreatedAt.After(found.CreatedAt) {
			found = r
		}
	}
	if found == nil {
		return nil, nil
	}
	c := *found
	return &c, nil
}

func (tx *memTx) ListActiveRestrictions(_ context.Context, now time.Time) ([]models.QuotaRestriction, error) {
	out := make([]models.QuotaRestriction, 0)
	for _, r := range tx.restrictions {
		if r.InEffect(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerName < out[j].WorkerName })
	return out, nil
}

func (tx *memTx) SaveRestriction(_ context.Context, restriction *models.QuotaRestriction) error {
	c := *restriction
	c.UpdatedAt = time.Now()
	tx.restrictions[c.ID] = &c
	return nil
}

func (tx *memTx) DeactivateRestrictions(_ context.Context, worker string) (int, error) {
	n := 0
	for _, r := range tx.restrictions {
		if r.WorkerName == worker && r.IsActive {
			r.IsActive = false
			n++
		}
	}
	return n, nil
}

func (tx *memTx) RecordEvent(_ context.Context, event *models.AssignmentEvent) error {
	event.ID = tx.nextEventID
	tx.nextEventID++
	tx.events = append(tx.events, *event)
	return nil
}

// liveOrders returns the non-deleted orders ordered by ID.
func (tx *memTx) liveOrders() []*models.VideoOrder {
	out := make([]*models.VideoOrder, 0, len(tx.orders))
	for _, o := range tx.orders {
		if !o.IsSoftDeleted() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsStatus(set []models.OrderStatus, s models.OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsDelivery(set []models.DeliveryStatus, d models.DeliveryStatus) bool {
	for _, v := range set {
		if v == d {
			return true
		}
	}
	return false
}
