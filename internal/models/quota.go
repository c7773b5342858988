package models

import (
	"time"
)

// DefaultMaxOrdersPerDay is the daily ceiling used when an administrator does not set one
const DefaultMaxOrdersPerDay = 3

// QuotaRestriction is a time-bounded daily cap imposed on one worker by an administrator
type QuotaRestriction struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	WorkerName      string    `gorm:"not null;index" json:"workerName"`
	StartDate       time.Time `gorm:"not null" json:"startDate"`
	EndDate         time.Time `gorm:"not null;index" json:"endDate"`
	MaxOrdersPerDay int       `gorm:"not null;default:3" json:"maxOrdersPerDay"`
	TimeZone        string    `gorm:"default:'UTC'" json:"timeZone"`
	IsActive        bool      `gorm:"default:true;index" json:"isActive"`
	CreatedBy       string    `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName specifies the table name for QuotaRestriction model
func (QuotaRestriction) TableName() string {
	return "quota_restrictions"
}

// InEffect reports whether the restriction is active and not yet expired at now
func (q *QuotaRestriction) InEffect(now time.Time) bool {
	return q.IsActive && q.EndDate.After(now)
}

// Location resolves the restriction's time zone, falling back to UTC
func (q *QuotaRestriction) Location() *time.Location {
	if q.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(q.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayWindow returns [startOfDay, startOfNextDay) around now in the restriction's time zone
func (q *QuotaRestriction) DayWindow(now time.Time) (time.Time, time.Time) {
	local := now.In(q.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return start, start.AddDate(0, 0, 1)
}
