package types

import "strings"

// PolicyMode controls how aggressively proposals may execute without a
// human approval step.
type PolicyMode string

const (
	PolicyManual   PolicyMode = "manual"
	PolicySemiAuto PolicyMode = "semi_auto"
	PolicyAuto     PolicyMode = "auto"
)

// IsValid checks if the policy mode is valid
func (m PolicyMode) IsValid() bool {
	switch m {
	case PolicyManual, PolicySemiAuto, PolicyAuto:
		return true
	default:
		return false
	}
}

// String returns the string representation of the policy mode
func (m PolicyMode) String() string {
	return string(m)
}

// NormalizePolicyMode maps arbitrary input to a valid policy mode.
// Anything unrecognized falls back to manual.
func NormalizePolicyMode(s string) PolicyMode {
	mode := PolicyMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.IsValid() {
		return PolicyManual
	}
	return mode
}
