package semantic

import (
	"testing"
	"time"

	"prediction-feed/internal/domain"
)

func TestFailoverPolicy_TriggersAfterStreak(t *testing.T) {
	policy := FailoverPolicy{Enabled: true, FailureThreshold: 3, CooldownRuns: 2}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	failing := RunOutcome{Attempts: 5, Failures: 1, LastError: "timeout"}

	var state domain.FailoverState
	var triggered bool

	for run := 1; run <= 2; run++ {
		state, triggered = policy.Next(state, failing, now)
		if triggered || state.ConsecutiveFailures != run {
			t.Fatalf("run %d: unexpected state %+v triggered=%v", run, state, triggered)
		}
	}

	state, triggered = policy.Next(state, failing, now)
	if !triggered {
		t.Fatal("expected failover on third failing run")
	}
	if state.ConsecutiveFailures != 0 || state.CooldownRunsRemaining != 2 {
		t.Errorf("unexpected state after trigger: %+v", state)
	}
	if state.LastTriggeredAt == nil || !state.LastTriggeredAt.Equal(now) {
		t.Errorf("expected LastTriggeredAt %v, got %v", now, state.LastTriggeredAt)
	}
	if state.LastReason == nil || *state.LastReason != "timeout" {
		t.Errorf("unexpected reason %v", state.LastReason)
	}
	if policy.Available(state) {
		t.Error("LLM should be unavailable during cooldown")
	}

	// Cooldown decrements by exactly one per run, whatever the outcome.
	state, _ = policy.Next(state, RunOutcome{}, now)
	if state.CooldownRunsRemaining != 1 {
		t.Errorf("expected cooldown 1, got %d", state.CooldownRunsRemaining)
	}
	state, _ = policy.Next(state, failing, now)
	if state.CooldownRunsRemaining != 0 || state.ConsecutiveFailures != 0 {
		t.Errorf("unexpected state after cooldown: %+v", state)
	}
	if !policy.Available(state) {
		t.Error("LLM should be available after cooldown")
	}
}

func TestFailoverPolicy_HealthyRunResetsStreak(t *testing.T) {
	policy := FailoverPolicy{Enabled: true, FailureThreshold: 3, CooldownRuns: 2}
	now := time.Now()

	state := domain.FailoverState{ConsecutiveFailures: 2}

	next, _ := policy.Next(state, RunOutcome{Attempts: 0}, now)
	if next.ConsecutiveFailures != 2 {
		t.Errorf("run without attempts must not change streak, got %d", next.ConsecutiveFailures)
	}

	next, _ = policy.Next(state, RunOutcome{Attempts: 3, Failures: 0}, now)
	if next.ConsecutiveFailures != 0 {
		t.Errorf("healthy run must reset streak, got %d", next.ConsecutiveFailures)
	}
}

func TestFailoverPolicy_DisabledResets(t *testing.T) {
	policy := FailoverPolicy{Enabled: false, FailureThreshold: 1, CooldownRuns: 5}
	state := domain.FailoverState{ConsecutiveFailures: 4, CooldownRunsRemaining: 3}

	if !policy.Available(state) {
		t.Error("disabled policy must never block the LLM")
	}
	next, triggered := policy.Next(state, RunOutcome{Attempts: 1, Failures: 1}, time.Now())
	if triggered || next != (domain.FailoverState{}) {
		t.Errorf("expected reset state, got %+v triggered=%v", next, triggered)
	}
}
