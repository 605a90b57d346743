package types

import "fmt"

// ProposalStatus represents the lifecycle state of an action proposal
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusApproved ProposalStatus = "approved"
	ProposalStatusRejected ProposalStatus = "rejected"
	ProposalStatusExecuted ProposalStatus = "executed"
	ProposalStatusFailed   ProposalStatus = "failed"
)

// AllProposalStatuses returns all valid proposal statuses
func AllProposalStatuses() []ProposalStatus {
	return []ProposalStatus{
		ProposalStatusPending,
		ProposalStatusApproved,
		ProposalStatusRejected,
		ProposalStatusExecuted,
		ProposalStatusFailed,
	}
}

// IsValid checks if the proposal status is valid
func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusPending,
		ProposalStatusApproved,
		ProposalStatusRejected,
		ProposalStatusExecuted,
		ProposalStatusFailed:
		return true
	default:
		return false
	}
}

// Executable reports whether execute may be attempted from this status.
// Rejected and executed are terminal for the normal flow.
func (s ProposalStatus) Executable() bool {
	switch s {
	case ProposalStatusPending, ProposalStatusApproved, ProposalStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the proposal status
func (s ProposalStatus) String() string {
	return string(s)
}

// ParseProposalStatus parses a string into a ProposalStatus
func ParseProposalStatus(s string) (ProposalStatus, error) {
	status := ProposalStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid proposal status: %s", s)
	}
	return status, nil
}
