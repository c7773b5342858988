package assignment

import (
	"encoding/json"
	"time"

	"github.com/xelth-com/eckvideo/internal/models"
	"gorm.io/datatypes"
)

// ActionKind names an audit-relevant action. It is chosen by the operation
// that performs the change, never inferred from which fields changed.
type ActionKind string

const (
	ActionClaim              ActionKind = "claim"
	ActionUnassign           ActionKind = "unassign"
	ActionReclaim            ActionKind = "reclaim"
	ActionManualReset        ActionKind = "manual_reset"
	ActionStatusChange       ActionKind = "status_change"
	ActionDeliverableSet     ActionKind = "deliverable_set"
	ActionDeliveryChange     ActionKind = "delivery_change"
	ActionPaymentChange      ActionKind = "payment_change"
	ActionCreate             ActionKind = "create"
	ActionSoftDelete         ActionKind = "soft_delete"
	ActionRestrictionSet     ActionKind = "restriction_set"
	ActionRestrictionRemoved ActionKind = "restriction_removed"
)

// Snapshot is the audited subset of an order's state.
type Snapshot struct {
	Status         models.OrderStatus    `json:"status"`
	DeliveryStatus models.DeliveryStatus `json:"deliveryStatus"`
	PaymentStatus  models.PaymentStatus  `json:"paymentStatus"`
	AssignedWorker string                `json:"assignedWorker"`
	AssignedAt     *time.Time            `json:"assignedAt"`
	CompletedAt    *time.Time            `json:"completedAt"`
	DeliverableURL string                `json:"deliverableUrl"`
}

// FieldChange is one before/after pair in a snapshot diff.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// TakeSnapshot captures the audited fields of an order.
func TakeSnapshot(o *models.VideoOrder) Snapshot {
	s := Snapshot{
		Status:         o.Status,
		DeliveryStatus: o.DeliveryStatus,
		PaymentStatus:  o.PaymentStatus,
		AssignedWorker: o.Worker(),
		AssignedAt:     o.AssignedAt,
		CompletedAt:    o.CompletedAt,
	}
	if o.DeliverableURL != nil {
		s.DeliverableURL = *o.DeliverableURL
	}
	return s
}

// Diff lists the fields that differ between two snapshots, keyed by JSON name.
func Diff(before, after Snapshot) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	add := func(name string, from, to any, equal bool) {
		if !equal {
			changes[name] = FieldChange{From: from, To: to}
		}
	}
	add("status", before.Status, after.Status, before.Status == after.Status)
	add("deliveryStatus", before.DeliveryStatus, after.DeliveryStatus, before.DeliveryStatus == after.DeliveryStatus)
	add("paymentStatus", before.PaymentStatus, after.PaymentStatus, before.PaymentStatus == after.PaymentStatus)
	add("assignedWorker", before.AssignedWorker, after.AssignedWorker, before.AssignedWorker == after.AssignedWorker)
	add("assignedAt", before.AssignedAt, after.AssignedAt, timesEqual(before.AssignedAt, after.AssignedAt))
	add("completedAt", before.CompletedAt, after.CompletedAt, timesEqual(before.CompletedAt, after.CompletedAt))
	add("deliverableUrl", before.DeliverableURL, after.DeliverableURL, before.DeliverableURL == after.DeliverableURL)
	return changes
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// orderEvent builds the audit record for a committed order change.
func orderEvent(kind ActionKind, actor Actor, worker string, before Snapshot, after *models.VideoOrder, at time.Time) *models.AssignmentEvent {
	var changes datatypes.JSON
	if diff := Diff(before, TakeSnapshot(after)); len(diff) > 0 {
		if raw, err := json.Marshal(diff); err == nil {
			changes = datatypes.JSON(raw)
		}
	}
	return &models.AssignmentEvent{
		OrderID:    after.ID,
		WorkerName: worker,
		Action:     string(kind),
		Actor:      actor.Name,
		Changes:    changes,
		CreatedAt:  at,
	}
}

// restrictionEvent builds the audit record for a quota restriction change.
func restrictionEvent(kind ActionKind, actor Actor, r *models.QuotaRestriction, at time.Time) *models.AssignmentEvent {
	raw, _ := json.Marshal(map[string]any{
		"restrictionId":   r.ID,
		"endDate":         r.EndDate,
		"maxOrdersPerDay": r.MaxOrdersPerDay,
		"isActive":        r.IsActive,
	})
	return &models.AssignmentEvent{
		WorkerName: r.WorkerName,
		Action:     string(kind),
		Actor:      actor.Name,
		Changes:    datatypes.JSON(raw),
		CreatedAt:  at,
	}
}
