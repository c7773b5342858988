package memrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
)

// Workers is an in-memory worker directory keyed by username.
type Workers struct {
	mu      sync.RWMutex
	workers map[string]models.Worker
}

// NewWorkers creates an empty directory.
func NewWorkers() *Workers {
	return &Workers{workers: make(map[string]models.Worker)}
}

// Add stores a copy of w, generating an ID when it has none. Like the table's
// column default, a zero IsActive is stored as active.
func (d *Workers) Add(w models.Worker) models.Worker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.IsActive = true
	if w.Role == "" {
		w.Role = models.RoleWorker
	}
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	d.workers[w.Username] = w
	return w
}

func (d *Workers) FindWorker(_ context.Context, username string) (*models.Worker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	w, ok := d.workers[username]
	if !ok {
		return nil, fmt.Errorf("%w: worker %s", assignment.ErrNotFound, username)
	}
	return &w, nil
}

func (d *Workers) RecordLogin(_ context.Context, username string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.workers[username]
	if !ok {
		return fmt.Errorf("%w: worker %s", assignment.ErrNotFound, username)
	}
	w.LastLogin = &at
	d.workers[username] = w
	return nil
}
