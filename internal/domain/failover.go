package domain

import "time"

// FailoverState is the persisted LLM failover singleton.
type FailoverState struct {
	ConsecutiveFailures   int
	CooldownRunsRemaining int
	LastTriggeredAt       *time.Time
	LastReason            *string
}

// InCooldown reports whether LLM calls are suspended.
func (s FailoverState) InCooldown() bool {
	return s.CooldownRunsRemaining > 0
}
