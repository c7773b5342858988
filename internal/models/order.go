package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the production status of a video order
type OrderStatus string

const (
	OrderStatusUnclaimed    OrderStatus = "unclaimed"     // Waiting for a worker
	OrderStatusInProgress   OrderStatus = "in_progress"   // Claimed and being produced
	OrderStatusRevising     OrderStatus = "revising"      // Customer asked for changes
	OrderStatusDone         OrderStatus = "done"          // First delivery finished
	OrderStatusRevisionDone OrderStatus = "revision_done" // Revision finished
)

// DeliveryStatus tracks what the customer has received
type DeliveryStatus string

const (
	DeliveryStatusNotSent        DeliveryStatus = "not_sent"
	DeliveryStatusSent           DeliveryStatus = "sent"
	DeliveryStatusUrgentRevision DeliveryStatus = "urgent_revision"
	DeliveryStatusCancelled      DeliveryStatus = "cancelled"
)

// PaymentStatus tracks whether the customer has paid
type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "unpaid"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusDefaulted PaymentStatus = "defaulted"
)

// VideoOrder is one assignable unit of video production work
type VideoOrder struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"uniqueIndex;not null" json:"order_number"`

	// Customer information
	CustomerName string `gorm:"index" json:"customer_name"`
	Title        string `json:"title"`
	Brief        string `gorm:"type:text" json:"brief"`

	// Lifecycle
	Status         OrderStatus    `gorm:"type:varchar(20);default:unclaimed;index" json:"status"`
	DeliveryStatus DeliveryStatus `gorm:"type:varchar(20);default:not_sent;index" json:"delivery_status"`
	PaymentStatus  PaymentStatus  `gorm:"type:varchar(20);default:unpaid" json:"payment_status"`

	// Assignment
	AssignedWorker *string    `gorm:"index" json:"assigned_worker,omitempty"`
	AssignedAt     *time.Time `gorm:"index" json:"assigned_at,omitempty"`

	DeliverableURL *string    `json:"deliverable_url,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for VideoOrder model
func (VideoOrder) TableName() string {
	return "video_orders"
}

// BeforeCreate fills defaults and generates the order number
func (o *VideoOrder) BeforeCreate(tx *gorm.DB) error {
	o.ApplyDefaults(time.Now())
	return nil
}

// ApplyDefaults sets the initial lifecycle values of a freshly created order
func (o *VideoOrder) ApplyDefaults(now time.Time) {
	if o.OrderNumber == "" {
		o.OrderNumber = generateOrderNumber("VID", now)
	}
	if o.Status == "" {
		o.Status = OrderStatusUnclaimed
	}
	if o.DeliveryStatus == "" {
		o.DeliveryStatus = DeliveryStatusNotSent
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentStatusUnpaid
	}
}

// generateOrderNumber creates an order number like VID20240312-3F2A9C1B04DE.
// The suffix is the first 48 random bits of a v4 UUID.
func generateOrderNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return fmt.Sprintf("%s%s-%s", prefix, now.Format("20060102"), suffix)
}

// Worker returns the assigned worker name or "" when unclaimed
func (o *VideoOrder) Worker() string {
	if o.AssignedWorker == nil {
		return ""
	}
	return *o.AssignedWorker
}

// HasDeliverable reports whether a non-empty deliverable URL is recorded
func (o *VideoOrder) HasDeliverable() bool {
	return o.DeliverableURL != nil && *o.DeliverableURL != ""
}

// IsSoftDeleted reports whether the order was soft deleted
func (o *VideoOrder) IsSoftDeleted() bool {
	return o.DeletedAt.Valid
}

// Clone returns a deep copy so callers never share pointer fields
func (o *VideoOrder) Clone() *VideoOrder {
	c := *o
	c.AssignedWorker = cloneString(o.AssignedWorker)
	c.AssignedAt = cloneTime(o.AssignedAt)
	c.DeliverableURL = cloneString(o.DeliverableURL)
	c.CompletedAt = cloneTime(o.CompletedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusUnclaimed, OrderStatusInProgress, OrderStatusRevising, OrderStatusDone, OrderStatusRevisionDone:
		return true
	}
	return false
}

// IsCompleted reports whether s is one of the finished statuses
func (s OrderStatus) IsCompleted() bool {
	return s == OrderStatusDone || s == OrderStatusRevisionDone
}

// Valid reports whether d is a known delivery status
func (d DeliveryStatus) Valid() bool {
	switch d {
	case DeliveryStatusNotSent, DeliveryStatusSent, DeliveryStatusUrgentRevision, DeliveryStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether p is a known payment status
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusDefaulted:
		return true
	}
	return false
}

// IsFinal reports whether p is settled (paid or written off)
func (p PaymentStatus) IsFinal() bool {
	return p == PaymentStatusPaid || p == PaymentStatusDefaulted
}
