package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPosition_SuccessPath(t *testing.T) {
	p := NewPosition(&Candidate{Mint: "Mint1", Pool: "Pool1", SpotPrice: 1.2})

	for _, next := range []PositionState{StateBuying, StateHolding, StateSelling, StateClosed} {
		if err := p.Transition(next); err != nil {
			t.Fatalf("Transition(%s): %v", next, err)
		}
	}

	if !p.State.Terminal() {
		t.Errorf("expected terminal state, got %s", p.State)
	}
}

func TestNewPosition_CarriesCandidateFields(t *testing.T) {
	detected := time.Now().Add(-20 * time.Millisecond)
	p := NewPosition(&Candidate{
		Mint:       "Mint1",
		Pool:       "Pool1",
		SpotPrice:  2e-8,
		DetectedAt: detected,
	})

	if p.State != StateDetected {
		t.Errorf("State = %s, want %s", p.State, StateDetected)
	}
	if p.Mint != "Mint1" || p.Pool != "Pool1" {
		t.Errorf("keys not carried: mint=%q pool=%q", p.Mint, p.Pool)
	}
	if p.EntryPrice != 2e-8 {
		t.Errorf("EntryPrice = %v, want 2e-8", p.EntryPrice)
	}
	if !p.DetectedAt.Equal(detected) {
		t.Errorf("DetectedAt = %v, want %v", p.DetectedAt, detected)
	}
}

func TestPosition_FailureExits(t *testing.T) {
	tests := []struct {
		name string
		path []PositionState
	}{
		{"buy failure", []PositionState{StateBuying, StateFailed}},
		{"sell failure", []PositionState{StateBuying, StateHolding, StateSelling, StateFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPosition(&Candidate{Mint: "Mint1"})
			for _, next := range tt.path {
				if err := p.Transition(next); err != nil {
					t.Fatalf("Transition(%s): %v", next, err)
				}
			}
			if p.State != StateFailed {
				t.Errorf("expected FAILED, got %s", p.State)
			}
		})
	}
}

func TestPosition_NoBackwardTransitions(t *testing.T) {
	p := NewPosition(&Candidate{Mint: "Mint1"})
	if err := p.Transition(StateBuying); err != nil {
		t.Fatalf("Transition(BUYING): %v", err)
	}
	if err := p.Transition(StateHolding); err != nil {
		t.Fatalf("Transition(HOLDING): %v", err)
	}

	// A sell failure must not revert to Holding, and nothing may revisit
	// earlier states.
	for _, next := range []PositionState{StateDetected, StateBuying, StateClosed, StateFailed} {
		err := p.Transition(next)
		if err == nil {
			t.Fatalf("Transition(%s) from HOLDING should fail", next)
		}
		var invalid *ErrInvalidTransition
		if !errors.As(err, &invalid) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	}
	if p.State != StateHolding {
		t.Errorf("failed transition mutated state to %s", p.State)
	}
}

func TestPosition_TerminalStatesAreFinal(t *testing.T) {
	p := NewPosition(&Candidate{Mint: "Mint1"})
	p.State = StateClosed

	for _, next := range []PositionState{StateDetected, StateBuying, StateHolding, StateSelling, StateFailed} {
		if err := p.Transition(next); err == nil {
			t.Errorf("transition out of CLOSED to %s should fail", next)
		}
	}
}
