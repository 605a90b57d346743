// Package policy maps proposed actions to risk tiers and decides whether a
// human approval step is required before execution. All functions are pure:
// they read nothing but their arguments and can be tested without any
// persistence.
package policy

import "github.com/stationops/wrench/pkg/domain/types"

// Rules is an optional override table carried in the planning context.
// When an entry is present for an action type or a risk level, it wins over
// the policy mode defaults. Action overrides are checked before risk ones.
type Rules struct {
	Actions map[types.ActionType]bool `json:"actions,omitempty" toml:"actions"`
	Risk    map[types.RiskLevel]bool  `json:"risk,omitempty" toml:"risk"`
}

// RiskFor classifies an action into a risk tier. Ordering parts is always
// high risk; assignments are medium; tickets depend on priority.
func RiskFor(actionType types.ActionType, priority int) types.RiskLevel {
	switch actionType {
	case types.ActionOrderPart:
		return types.RiskHigh
	case types.ActionAssignWorker:
		return types.RiskMedium
	case types.ActionCreateTicket:
		if priority >= 3 {
			return types.RiskMedium
		}
		return types.RiskLow
	default:
		return types.RiskMedium
	}
}

// RequiresApproval decides whether the proposal must be approved by a human
// before it may execute. An unrecognized policy mode behaves as manual.
func RequiresApproval(mode types.PolicyMode, actionType types.ActionType, risk types.RiskLevel, rules *Rules) bool {
	if rules != nil {
		if override, ok := rules.Actions[actionType]; ok {
			return override
		}
		if override, ok := rules.Risk[risk]; ok {
			return override
		}
	}

	switch mode {
	case types.PolicyManual:
		return true
	case types.PolicySemiAuto:
		return risk != types.RiskLow
	case types.PolicyAuto:
		return risk == types.RiskHigh
	default:
		return true
	}
}
