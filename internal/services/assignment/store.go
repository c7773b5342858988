package assignment

import (
	"context"
	"time"

	"github.com/xelth-com/eckvideo/internal/models"
)

// ActiveCriteria describes which orders count towards a worker's workload.
// An order is active when its status is in Statuses OR its delivery status is in Deliveries.
type ActiveCriteria struct {
	Statuses   []models.OrderStatus
	Deliveries []models.DeliveryStatus
}

// OrderFilter narrows ListOrders results. Zero values mean "any".
type OrderFilter struct {
	Worker string
	Status models.OrderStatus
	Limit  int
}

// OrderTx is the work item side of a unit of work.
type OrderTx interface {
	// GetOrder loads an order and holds its row for the rest of the unit of work.
	// Missing and soft-deleted orders yield ErrNotFound.
	GetOrder(ctx context.Context, id uint) (*models.VideoOrder, error)
	SaveOrder(ctx context.Context, order *models.VideoOrder) error
	CreateOrder(ctx context.Context, order *models.VideoOrder) error
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.VideoOrder, error)
	CountActive(ctx context.Context, worker string, criteria ActiveCriteria) (int, error)
	CountAssignedBetween(ctx context.Context, worker string, from, to time.Time) (int, error)
	FindExpired(ctx context.Context, cutoff time.Time, statuses []models.OrderStatus) ([]models.VideoOrder, error)
	SoftDeleteOrder(ctx context.Context, id uint) error

	// LockWorker serializes admission decisions for one worker until the unit of work ends,
	// so concurrent claims of different orders cannot both pass the same count.
	LockWorker(ctx context.Context, worker string) error
}

// QuotaTx is the quota restriction side of a unit of work.
type QuotaTx interface {
	// FindActiveRestriction returns the restriction in effect at now, or nil when there is none.
	FindActiveRestriction(ctx context.Context, worker string, now time.Time) (*models.QuotaRestriction, error)
	ListActiveRestrictions(ctx context.Context, now time.Time) ([]models.QuotaRestriction, error)
	SaveRestriction(ctx context.Context, restriction *models.QuotaRestriction) error
	DeactivateRestrictions(ctx context.Context, worker string) (int, error)
}

// AuditTx records audit events in the same unit of work as the change they describe.
type AuditTx interface {
	RecordEvent(ctx context.Context, event *models.AssignmentEvent) error
}

// Tx is a read-modify-write unit of work over both stores.
type Tx interface {
	OrderTx
	QuotaTx
	AuditTx
}

// Store runs units of work. Atomically commits when fn returns nil and rolls back otherwise.
type Store interface {
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}

// Notification is pushed to a worker after an assignment change has been committed.
type Notification struct {
	Type        ActionKind `json:"type"`
	OrderID     uint       `json:"orderId"`
	OrderNumber string     `json:"orderNumber"`
	Worker      string     `json:"worker"`
	At          time.Time  `json:"at"`
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}
