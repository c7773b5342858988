package metrics

// Nop implements a no-op metrics collector.
//
// All metrics are discarded. Used by tests and when metrics are disabled.
type Nop struct{}

// Compile-time assertion that Nop implements Collector.
var _ Collector = Nop{}

// NewNop creates a new no-op metrics collector.
func NewNop() Nop {
	return Nop{}
}

func (Nop) AssignmentAccepted()                   {}
func (Nop) AssignmentRejected(string)             {}
func (Nop) OrderReleased(string)                  {}
func (Nop) SweepCompleted(float64, int, int, int) {}
