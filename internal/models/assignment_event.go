package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssignmentEvent is an audit record written alongside every committed order transition
type AssignmentEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	OrderID    uint           `gorm:"index" json:"orderId,omitempty"`
	WorkerName string         `gorm:"index" json:"workerName,omitempty"` // subject worker of the action
	Action     string         `gorm:"not null;index" json:"action"`
	Actor      string         `gorm:"index" json:"actor"` // "system" for the reclamation sweep
	Changes    datatypes.JSON `gorm:"type:jsonb" json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// TableName specifies the table name for AssignmentEvent model
func (AssignmentEvent) TableName() string {
	return "assignment_events"
}
