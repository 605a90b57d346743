package policy_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/stationops/wrench/pkg/domain/policy"
	"github.com/stationops/wrench/pkg/domain/types"
)

func TestRiskFor(t *testing.T) {
	t.Run("order_part is always high", func(t *testing.T) {
		for priority := 1; priority <= 4; priority++ {
			gt.Value(t, policy.RiskFor(types.ActionOrderPart, priority)).Equal(types.RiskHigh)
		}
	})

	t.Run("assign_worker is always medium", func(t *testing.T) {
		for priority := 1; priority <= 4; priority++ {
			gt.Value(t, policy.RiskFor(types.ActionAssignWorker, priority)).Equal(types.RiskMedium)
		}
	})

	t.Run("create_ticket depends on priority", func(t *testing.T) {
		gt.Value(t, policy.RiskFor(types.ActionCreateTicket, 1)).Equal(types.RiskLow)
		gt.Value(t, policy.RiskFor(types.ActionCreateTicket, 2)).Equal(types.RiskLow)
		gt.Value(t, policy.RiskFor(types.ActionCreateTicket, 3)).Equal(types.RiskMedium)
		gt.Value(t, policy.RiskFor(types.ActionCreateTicket, 4)).Equal(types.RiskMedium)
	})

	t.Run("unknown action type defaults to medium", func(t *testing.T) {
		gt.Value(t, policy.RiskFor(types.ActionType("reboot_station"), 1)).Equal(types.RiskMedium)
	})
}

func TestRequiresApproval(t *testing.T) {
	t.Run("manual always requires approval", func(t *testing.T) {
		for _, risk := range []types.RiskLevel{types.RiskLow, types.RiskMedium, types.RiskHigh} {
			gt.True(t, policy.RequiresApproval(types.PolicyManual, types.ActionCreateTicket, risk, nil))
		}
	})

	t.Run("semi_auto skips approval only for low risk", func(t *testing.T) {
		gt.False(t, policy.RequiresApproval(types.PolicySemiAuto, types.ActionCreateTicket, types.RiskLow, nil))
		gt.True(t, policy.RequiresApproval(types.PolicySemiAuto, types.ActionCreateTicket, types.RiskMedium, nil))
		gt.True(t, policy.RequiresApproval(types.PolicySemiAuto, types.ActionOrderPart, types.RiskHigh, nil))
	})

	t.Run("auto requires approval only for high risk", func(t *testing.T) {
		gt.False(t, policy.RequiresApproval(types.PolicyAuto, types.ActionCreateTicket, types.RiskLow, nil))
		gt.False(t, policy.RequiresApproval(types.PolicyAuto, types.ActionAssignWorker, types.RiskMedium, nil))
		gt.True(t, policy.RequiresApproval(types.PolicyAuto, types.ActionOrderPart, types.RiskHigh, nil))
	})

	t.Run("unrecognized mode behaves as manual", func(t *testing.T) {
		gt.True(t, policy.RequiresApproval(types.PolicyMode("yolo"), types.ActionCreateTicket, types.RiskLow, nil))
	})

	t.Run("action override wins over mode and risk", func(t *testing.T) {
		rules := &policy.Rules{
			Actions: map[types.ActionType]bool{types.ActionOrderPart: false},
			Risk:    map[types.RiskLevel]bool{types.RiskHigh: true},
		}
		gt.False(t, policy.RequiresApproval(types.PolicyManual, types.ActionOrderPart, types.RiskHigh, rules))
	})

	t.Run("risk override applies when no action override", func(t *testing.T) {
		rules := &policy.Rules{
			Risk: map[types.RiskLevel]bool{types.RiskLow: true},
		}
		gt.True(t, policy.RequiresApproval(types.PolicyAuto, types.ActionCreateTicket, types.RiskLow, rules))
	})
}
