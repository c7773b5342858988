// Package metrics exposes assignment engine instrumentation.
package metrics

// Collector receives assignment engine measurements.
type Collector interface {
	// AssignmentAccepted counts a successful claim.
	AssignmentAccepted()

	// AssignmentRejected counts a rejected claim by reason (quota, workload_cap, already_claimed, ...).
	AssignmentRejected(reason string)

	// OrderReleased counts an order returned to unclaimed by kind (unassign, reclaim, manual_reset).
	OrderReleased(kind string)

	// SweepCompleted records one reclamation sweep.
	SweepCompleted(seconds float64, scanned, reclaimed, failed int)
}
