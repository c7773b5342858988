// Package gormrepo is the PostgreSQL assignment.Store built on GORM.
//
// Each unit of work is one database transaction. GetOrder takes a row lock with
// SELECT ... FOR UPDATE, and LockWorker takes a transaction-scoped advisory lock
// keyed by the worker name, so admission counts cannot be raced by concurrent claims.
package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store runs units of work in PostgreSQL transactions.
type Store struct {
	db *gorm.DB
}

var _ assignment.Store = (*Store)(nil)

// New wraps an open connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Atomically runs fn in a transaction that commits when fn returns nil.
func (s *Store) Atomically(ctx context.Context, fn func(tx assignment.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	})
}

type gormTx struct {
	db *gorm.DB
}

var _ assignment.Tx = (*gormTx)(nil)

func (tx *gormTx) GetOrder(ctx context.Context, id uint) (*models.VideoOrder, error) {
	var o models.VideoOrder
	err := tx.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %d", assignment.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return &o, nil
}

func (tx *gormTx) SaveOrder(ctx context.Context, order *models.VideoOrder) error {
	// Select("*") writes nil pointers as NULL, which is how a worker is cleared.
	res := tx.db.WithContext(ctx).Model(order).Select("*").Omit("CreatedAt", "DeletedAt").Updates(order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d", assignment.ErrNotFound, order.ID)
	}
	return nil
}

func (tx *gormTx) CreateOrder(ctx context.Context, order *models.VideoOrder) error {
	return tx.db.WithContext(ctx).Create(order).Error
}

func (tx *gormTx) ListOrders(ctx context.Context, filter assignment.OrderFilter) ([]models.VideoOrder, error) {
	q := tx.db.WithContext(ctx).Order("id")
	if filter.Worker != "" {
		q = q.Where("assigned_worker = ?", filter.Worker)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []models.VideoOrder
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (tx *gormTx) CountActive(ctx context.Context, worker string, criteria assignment.ActiveCriteria) (int, error) {
	var n int64
	err := tx.db.WithContext(ctx).Model(&models.VideoOrder{}).
		Where("assigned_worker = ?", worker).
		Where(tx.db.Session(&gorm.Session{NewDB: true}).Where("status IN ?", criteria.Statuses).Or("delivery_status IN ?", criteria.Deliveries)).
		Count(&n).Error
	return int(n), err
}

func (tx *gormTx) CountAssignedBetween(ctx context.Context, worker string, from, to time.Time) (int, error) {
	var n int64
	err := tx.db.WithContext(ctx).Model(&models.VideoOrder{}).
		Where("assigned_worker = ? AND assigned_at >= ? AND assigned_at < ?", worker, from, to).
		Count(&n).Error
	return int(n), err
}

func (tx *gormTx) FindExpired(ctx context.Context, cutoff time.Time, statuses []models.OrderStatus) ([]models.VideoOrder, error) {
	var out []models.VideoOrder
	err := tx.db.WithContext(ctx).
		Where("assigned_worker IS NOT NULL AND assigned_at < ? AND status IN ?", cutoff, statuses).
		Order("assigned_at").
		Find(&out).Error
	return out, err
}

func (tx *gormTx) SoftDeleteOrder(ctx context.Context, id uint) error {
	res := tx.db.WithContext(ctx).Delete(&models.VideoOrder{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d", assignment.ErrNotFound, id)
	}
	return nil
}

func (tx *gormTx) LockWorker(ctx context.Context, worker string) error {
	return tx.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "worker:"+worker).Error
}

func (tx *gormTx) FindActiveRestriction(ctx context.Context, worker string, now time.Time) (*models.QuotaRestriction, error) {
	var r models.QuotaRestriction
	err := tx.db.WithContext(ctx).
		Where("worker_name = ? AND is_active = ? AND end_date > ?", worker, true, now).
		Order("created_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (tx *gormTx) ListActiveRestrictions(ctx context.Context, now time.Time) ([]models.QuotaRestriction, error) {
	var out []models.QuotaRestriction
	err := tx.db.WithContext(ctx).
		Where("is_active = ? AND end_date > ?", true, now).
		Order("worker_name").
		Find(&out).Error
	return out, err
}

func (tx *gormTx) SaveRestriction(ctx context.Context, restriction *models.QuotaRestriction) error {
	return tx.db.WithContext(ctx).Save(restriction).Error
}

func (tx *gormTx) DeactivateRestrictions(ctx context.Context, worker string) (int, error) {
	res := tx.db.WithContext(ctx).Model(&models.QuotaRestriction{}).
		Where("worker_name = ? AND is_active = ?", worker, true).
		Update("is_active", false)
	return int(res.RowsAffected), res.Error
}

func (tx *gormTx) RecordEvent(ctx context.Context, event *models.AssignmentEvent) error {
	return tx.db.WithContext(ctx).Create(event).Error
}
