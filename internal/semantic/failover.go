package semantic

import (
	"time"

	"prediction-feed/internal/domain"
)

// FailoverPolicy suspends LLM calls after a streak of failing runs.
type FailoverPolicy struct {
	Enabled          bool
	FailureThreshold int
	CooldownRuns     int
}

// RunOutcome is the LLM activity of one run.
type RunOutcome struct {
	Attempts  int
	Failures  int
	LastError string
}

// Available reports whether the LLM may be called this run.
func (p FailoverPolicy) Available(state domain.FailoverState) bool {
	return !p.Enabled || !state.InCooldown()
}

// Next returns the state to persist after a run and whether failover
// triggered in this run.
//
// A run in cooldown only decrements the cooldown. A run with at least one
// attempt and one failure extends the streak; reaching the threshold starts a
// cooldown and resets the streak. A run with attempts and no failures resets
// the streak. A run without attempts leaves the streak unchanged.
func (p FailoverPolicy) Next(state domain.FailoverState, outcome RunOutcome, now time.Time) (domain.FailoverState, bool) {
	if !p.Enabled {
		return domain.FailoverState{}, false
	}

	if state.InCooldown() {
		state.CooldownRunsRemaining--
		return state, false
	}

	if outcome.Attempts == 0 {
		return state, false
	}

	if outcome.Failures == 0 {
		state.ConsecutiveFailures = 0
		return state, false
	}

	state.ConsecutiveFailures++
	if state.ConsecutiveFailures < p.FailureThreshold {
		return state, false
	}

	at := now.UTC()
	reason := outcome.LastError
	if reason == "" {
		reason = "llm failure streak"
	}
	state.ConsecutiveFailures = 0
	state.CooldownRunsRemaining = p.CooldownRuns
	state.LastTriggeredAt = &at
	state.LastReason = &reason
	return state, true
}
