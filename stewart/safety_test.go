package stewart

import (
	"errors"
	"testing"
)

func TestGateAllowsUniversalCommandsInAnyState(t *testing.T) {
	f := NewSafetyFSM()
	for _, s := range []State{StateUnknown, StateOff, StateOn, StateMoving, StateFault} {
		f.setState(s)
		if err := f.Gate("devLockVerify"); err != nil {
			t.Errorf("expected devLockVerify allowed in state %s, got %v", s, err)
		}
	}
}

func TestGateRejectsMotionCommandsOutsideOn(t *testing.T) {
	f := NewSafetyFSM()
	for _, s := range []State{StateUnknown, StateOff, StateFault} {
		f.setState(s)
		err := f.Gate("movePoseRelative")
		if !errors.Is(err, ErrStateViolation) {
			t.Errorf("expected ErrStateViolation for movePoseRelative in state %s, got %v", s, err)
		}
	}
	f.setState(StateOn)
	if err := f.Gate("movePoseRelative"); err != nil {
		t.Errorf("expected movePoseRelative allowed in On, got %v", err)
	}
	f.setState(StateMoving)
	if err := f.Gate("movePoseRelative"); err != nil {
		t.Errorf("expected movePoseRelative allowed in Moving, got %v", err)
	}
}

func TestLatchLimitFaultTransitionsToFaultWithAlarm(t *testing.T) {
	f := NewSafetyFSM()
	f.setState(StateMoving)
	f.LatchLimitFault(2, 1)
	if f.State() != StateFault {
		t.Errorf("expected state Fault after latch, got %s", f.State())
	}
	if !f.FaultLatched() {
		t.Error("expected FaultLatched true")
	}
	axis, el := f.FaultDetail()
	if axis != 2 || el != 1 {
		t.Errorf("expected axis 2 el 1, got axis %d el %d", axis, el)
	}
	want := "Limit switch triggered: axis 2 (EL+)"
	if f.AlarmState() != want {
		t.Errorf("expected alarm %q, got %q", want, f.AlarmState())
	}
}

func TestClearFaultReturnsToOn(t *testing.T) {
	f := NewSafetyFSM()
	f.setState(StateMoving)
	f.LatchLimitFault(0, -1)
	f.ClearFault()
	if f.FaultLatched() {
		t.Error("expected fault cleared")
	}
	if f.State() != StateOn {
		t.Errorf("expected state On after ClearFault, got %s", f.State())
	}
	if f.AlarmState() != "" {
		t.Errorf("expected alarm cleared, got %q", f.AlarmState())
	}
}

func TestResultValueTracksLastCommand(t *testing.T) {
	f := NewSafetyFSM()
	f.SetResult(true)
	if f.ResultValue() != 0 {
		t.Errorf("expected resultValue 0 on success, got %d", f.ResultValue())
	}
	f.SetResult(false)
	if f.ResultValue() != 1 {
		t.Errorf("expected resultValue 1 on failure, got %d", f.ResultValue())
	}
}

func TestUnknownCommandIsGateError(t *testing.T) {
	f := NewSafetyFSM()
	f.setState(StateOn)
	if err := f.Gate("notACommand"); err == nil {
		t.Error("expected an error for an ungated command name")
	}
}
