package engine

import "testing"

func TestStateMachine_LegalChain(t *testing.T) {
	sm := NewStateMachine()

	chain := []State{
		StateIdle, StateCalculating, StateDetecting, StateChoosingOrder,
		StateTakerOrder, StateAwaitingFill, StatePositionOpen,
		StateSettled, StateUpdatingBalance, StateIdle,
	}
	for i := 1; i < len(chain); i++ {
		if err := sm.ValidateTransition(chain[i-1], chain[i]); err != nil {
			t.Errorf("%s -> %s: %v", chain[i-1], chain[i], err)
		}
	}
}

func TestStateMachine_RejectPathsReturnToIdle(t *testing.T) {
	sm := NewStateMachine()

	// 订单提交前的风控复查不过也要能退回 Idle
	for _, from := range []State{
		StateCalculating, StateDetecting, StateChoosingOrder,
		StateTakerOrder, StateMakerOrder, StateAwaitingFill,
	} {
		if err := sm.ValidateTransition(from, StateIdle); err != nil {
			t.Errorf("%s -> IDLE must be legal: %v", from, err)
		}
	}
}

func TestStateMachine_IllegalTransitions(t *testing.T) {
	sm := NewStateMachine()

	cases := []StateTransition{
		{StateIdle, StateAwaitingFill},
		{StateDetecting, StateTakerOrder},
		{StatePositionOpen, StateIdle},
		{StateSettled, StateIdle},
	}
	for _, c := range cases {
		if err := sm.ValidateTransition(c.From, c.To); err == nil {
			t.Errorf("%s -> %s must be illegal", c.From, c.To)
		}
	}
}

func TestStateMachine_SameStateIdempotent(t *testing.T) {
	sm := NewStateMachine()
	if err := sm.ValidateTransition(StateAwaitingFill, StateAwaitingFill); err != nil {
		t.Fatalf("same-state transition must be allowed: %v", err)
	}
}

func TestStateMachine_CanSubmit(t *testing.T) {
	sm := NewStateMachine()
	if !sm.CanSubmit(StateTakerOrder) || !sm.CanSubmit(StateMakerOrder) {
		t.Error("order states must allow submission")
	}
	if sm.CanSubmit(StateIdle) || sm.CanSubmit(StatePositionOpen) {
		t.Error("non-order states must not allow submission")
	}
}
