package models

import (
	"time"

	"gorm.io/gorm"
)

// Worker roles
const (
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

// Worker represents a staff member who can log in and hold video orders
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type Worker struct {
	ID        string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username  string     `gorm:"unique;not null" json:"username"`
	Password  string     `gorm:"not null" json:"-"`
	Email     string     `gorm:"unique;not null" json:"email"`
	Name      string     `json:"name,omitempty"`
	Role      string     `gorm:"default:'worker'" json:"role"`
	IsActive  bool       `gorm:"default:true" json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Worker model
func (Worker) TableName() string {
	return "workers"
}
