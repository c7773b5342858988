package assignment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/repository/memrepo"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
)

var (
	admin = assignment.Actor{Name: "boss", Role: models.RoleAdmin}
	alice = assignment.Actor{Name: "alice", Role: models.RoleWorker}
	bob   = assignment.Actor{Name: "bob", Role: models.RoleWorker}
	carol = assignment.Actor{Name: "carol", Role: models.RoleWorker}
)

// fakeClock is a settable clock shared by every component of a harness.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []assignment.Notification
}

func (n *recordingNotifier) Notify(msg assignment.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) All() []assignment.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]assignment.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

type harness struct {
	ctx       context.Context
	store     *memrepo.Store
	clock     *fakeClock
	notifier  *recordingNotifier
	workload  *assignment.WorkloadGovernor
	quota     *assignment.QuotaLimiter
	coord     *assignment.Coordinator
	reclaimer *assignment.Reclaimer
	seq       int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOver(t, nil)
}

// newHarnessOver builds a harness whose engine runs on wrap(store) instead of the bare store.
func newHarnessOver(t *testing.T, wrap func(*memrepo.Store) assignment.Store) *harness {
	t.Helper()

	store := memrepo.New()
	var backing assignment.Store = store
	if wrap != nil {
		backing = wrap(store)
	}
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	policy := assignment.StaticPolicy{}

	workload := assignment.NewWorkloadGovernor(backing)
	quota := assignment.NewQuotaLimiter(backing, policy, clock.Now, "UTC")
	coord := assignment.NewCoordinator(backing, workload, quota, assignment.Options{
		Notifier: notifier,
		Clock:    clock.Now,
	})

	return &harness{
		ctx:       context.Background(),
		store:     store,
		clock:     clock,
		notifier:  notifier,
		workload:  workload,
		quota:     quota,
		coord:     coord,
		reclaimer: assignment.NewReclaimer(coord, policy, time.Minute),
	}
}

// newOrder creates an unclaimed order through the coordinator.
func (h *harness) newOrder(t *testing.T) *models.VideoOrder {
	t.Helper()
	h.seq++
	o, err := h.coord.CreateOrder(h.ctx, admin, &models.VideoOrder{
		OrderNumber:  fmt.Sprintf("VID-TEST-%03d", h.seq),
		CustomerName: "ACME",
		Title:        fmt.Sprintf("Spot %d", h.seq),
	})
	require.NoError(t, err)
	return o
}

// claimed creates an order and assigns it to worker.
func (h *harness) claimed(t *testing.T, worker assignment.Actor) *models.VideoOrder {
	t.Helper()
	o := h.newOrder(t)
	o, err := h.coord.Assign(h.ctx, worker, o.ID, worker.Name)
	require.NoError(t, err)
	return o
}

// complete attaches a deliverable and marks the order done as its holder.
func (h *harness) complete(t *testing.T, worker assignment.Actor, id uint) *models.VideoOrder {
	t.Helper()
	_, err := h.coord.SetDeliverable(h.ctx, worker, id, "https://cdn.example.com/v/"+fmt.Sprint(id)+".mp4")
	require.NoError(t, err)
	o, err := h.coord.UpdateStatus(h.ctx, worker, id, models.OrderStatusDone)
	require.NoError(t, err)
	return o
}

func (h *harness) reload(t *testing.T, id uint) *models.VideoOrder {
	t.Helper()
	o, ok := h.store.Order(id)
	require.True(t, ok, "order %d missing", id)
	return o
}

func requireUnclaimed(t *testing.T, o *models.VideoOrder) {
	t.Helper()
	require.Equal(t, models.OrderStatusUnclaimed, o.Status)
	require.Nil(t, o.AssignedWorker)
	require.Nil(t, o.AssignedAt)
}
