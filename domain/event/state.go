package event

// DeliveryState tracks a ChangeEvent through the dispatch pipeline.
type DeliveryState string

// DeliveryState values.
const (
	StatePending      DeliveryState = "pending"
	StateInFlight     DeliveryState = "in_flight"
	StateAcknowledged DeliveryState = "acknowledged"
	StateRetrying     DeliveryState = "retrying"
	StateDeadLettered DeliveryState = "dead_lettered"
	StateRejected     DeliveryState = "rejected"
)

// IsTerminal returns true if the state represents a final outcome.
func (s DeliveryState) IsTerminal() bool {
	return s == StateAcknowledged || s == StateDeadLettered || s == StateRejected
}

// String returns the string representation of the state.
func (s DeliveryState) String() string {
	return string(s)
}
