package types

// FlowStatus is the state of an OAuth authorization flow.
// Expired is never stored; it is reported when the cached flow is gone.
type FlowStatus string

const (
	FlowPending FlowStatus = "pending"
	FlowSuccess FlowStatus = "success"
	FlowError   FlowStatus = "error"
	FlowExpired FlowStatus = "expired"
)

// Terminal reports whether the flow has reached a final state
func (s FlowStatus) Terminal() bool {
	return s == FlowSuccess || s == FlowError
}

// String returns the string representation of the flow status
func (s FlowStatus) String() string {
	return string(s)
}
