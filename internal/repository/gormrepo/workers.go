package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
	"gorm.io/gorm"
)

// Workers reads worker accounts from the workers table.
type Workers struct {
	db *gorm.DB
}

// NewWorkers wraps an open connection.
func NewWorkers(db *gorm.DB) *Workers {
	return &Workers{db: db}
}

func (d *Workers) FindWorker(ctx context.Context, username string) (*models.Worker, error) {
	var w models.Worker
	err := d.db.WithContext(ctx).Where("username = ?", username).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: worker %s", assignment.ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("load worker %s: %w", username, err)
	}
	return &w, nil
}

func (d *Workers) RecordLogin(ctx context.Context, username string, at time.Time) error {
	return d.db.WithContext(ctx).Model(&models.Worker{}).
		Where("username = ?", username).
		Update("last_login", at).Error
}
