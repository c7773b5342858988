package assignment

import (
	"time"

	"github.com/xelth-com/eckvideo/internal/models"
)

// Default governance policy values.
const (
	DefaultReclaimTimeout   = 15 * time.Minute
	DefaultSweepInterval    = time.Minute
	DefaultSweepDeadline    = 30 * time.Second
	DefaultSweepConcurrency = 4
)

// Policy supplies tunables that may change while the process runs.
// Each accessor is read at the moment of use.
type Policy interface {
	ReclaimTimeout() time.Duration
	SweepDeadline() time.Duration
	SweepConcurrency() int
	DefaultMaxOrdersPerDay() int
}

// StaticPolicy is a fixed Policy. Zero fields fall back to the defaults.
type StaticPolicy struct {
	Timeout     time.Duration
	Deadline    time.Duration
	Concurrency int
	MaxPerDay   int
}

var _ Policy = StaticPolicy{}

func (p StaticPolicy) ReclaimTimeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultReclaimTimeout
	}
	return p.Timeout
}

func (p StaticPolicy) SweepDeadline() time.Duration {
	if p.Deadline <= 0 {
		return DefaultSweepDeadline
	}
	return p.Deadline
}

func (p StaticPolicy) SweepConcurrency() int {
	if p.Concurrency <= 0 {
		return DefaultSweepConcurrency
	}
	return p.Concurrency
}

func (p StaticPolicy) DefaultMaxOrdersPerDay() int {
	if p.MaxPerDay <= 0 {
		return models.DefaultMaxOrdersPerDay
	}
	return p.MaxPerDay
}

// Clock returns the current time. Tests inject a fixed or stepping clock.
type Clock func() time.Time
