package types

import "fmt"

// ActionType represents the kind of side-effecting action a proposal carries
type ActionType string

const (
	ActionCreateTicket ActionType = "create_ticket"
	ActionAssignWorker ActionType = "assign_worker"
	ActionOrderPart    ActionType = "order_part"
)

// AllActionTypes returns all valid action types
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionCreateTicket,
		ActionAssignWorker,
		ActionOrderPart,
	}
}

// IsValid checks if the action type is valid
func (t ActionType) IsValid() bool {
	switch t {
	case ActionCreateTicket, ActionAssignWorker, ActionOrderPart:
		return true
	default:
		return false
	}
}

// NeedsTicket reports whether executing this action requires a resolved
// ticket from the same workflow.
func (t ActionType) NeedsTicket() bool {
	return t == ActionAssignWorker || t == ActionOrderPart
}

// String returns the string representation of the action type
func (t ActionType) String() string {
	return string(t)
}

// ParseActionType parses a string into an ActionType
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid action type: %s", s)
	}
	return t, nil
}
