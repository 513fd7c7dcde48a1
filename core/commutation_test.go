package core

import (
	"errors"
	"testing"
)

func newEngagedController(t *testing.T) (*CommutationController, *mockBridge) {
	t.Helper()
	resetCoreState()

	bridge := &mockBridge{}
	ctrl := NewCommutationController(bridge, bridge)
	if err := ctrl.Engage(); err != nil {
		t.Fatalf("Engage failed: %v", err)
	}
	return ctrl, bridge
}

func TestEngage(t *testing.T) {
	ctrl, bridge := newEngagedController(t)

	if len(bridge.calls) != 2 || bridge.calls[0].Op != "disarm" || bridge.calls[1].Op != "pattern" {
		t.Fatalf("Expected disarm then pattern, got %+v", bridge.calls)
	}
	if bridge.pattern != EntryFor(0).Drive {
		t.Errorf("Expected step 0 pattern %s, got %s", EntryFor(0).Drive, bridge.pattern)
	}

	status := ctrl.Snapshot()
	if status.Step != 0 || status.Mode != ModeStarting || !status.Engaged {
		t.Errorf("Unexpected status after Engage: %+v", status)
	}
	if bridge.armed {
		t.Error("Sensor must stay disarmed after Engage")
	}
}

func TestZeroCrossingAdvancesPatternThenArm(t *testing.T) {
	ctrl, bridge := newEngagedController(t)
	if err := ctrl.TransitionToRunning(); err != nil {
		t.Fatalf("TransitionToRunning failed: %v", err)
	}
	ctrl.step = 2
	bridge.reset()

	RunInterrupt(ctrl.OnZeroCrossing)

	if ctrl.Snapshot().Step != 3 {
		t.Fatalf("Expected step 3, got %d", ctrl.Snapshot().Step)
	}
	if len(bridge.calls) != 2 {
		t.Fatalf("Expected 2 calls, got %+v", bridge.calls)
	}
	if bridge.calls[0].Op != "pattern" || bridge.calls[0].Pattern != EntryFor(3).Drive {
		t.Errorf("First call should assert %s, got %+v", EntryFor(3).Drive, bridge.calls[0])
	}
	if bridge.calls[1].Op != "arm" || bridge.calls[1].Sense != EntryFor(3).Sense {
		t.Errorf("Second call should arm %s, got %+v", EntryFor(3).Sense, bridge.calls[1])
	}
}

func TestZeroCrossingIgnoredWhileStarting(t *testing.T) {
	ctrl, bridge := newEngagedController(t)
	bridge.reset()

	RunInterrupt(ctrl.OnZeroCrossing)

	if ctrl.Snapshot().Step != 0 {
		t.Errorf("Step changed while starting: %d", ctrl.Snapshot().Step)
	}
	if len(bridge.calls) != 0 {
		t.Errorf("Expected no bridge calls, got %+v", bridge.calls)
	}
}

func TestForceStepAdvanceArming(t *testing.T) {
	ctrl, bridge := newEngagedController(t)

	for i := 0; i < 8; i++ {
		if err := ctrl.ForceStepAdvance(); err != nil {
			t.Fatalf("ForceStepAdvance failed: %v", err)
		}
	}
	if len(bridge.ops("arm")) != 0 {
		t.Errorf("Sensor armed while starting: %+v", bridge.ops("arm"))
	}
	if ctrl.Snapshot().Step != 2 {
		t.Errorf("Expected step 2 after 8 advances, got %d", ctrl.Snapshot().Step)
	}

	if err := ctrl.TransitionToRunning(); err != nil {
		t.Fatalf("TransitionToRunning failed: %v", err)
	}
	arms := bridge.ops("arm")
	if len(arms) != 1 || arms[0].Sense != EntryFor(2).Sense {
		t.Fatalf("Expected one arm for step 2, got %+v", arms)
	}

	// Manual override while running arms for the new step
	bridge.reset()
	if err := ctrl.ForceStepAdvance(); err != nil {
		t.Fatalf("ForceStepAdvance failed: %v", err)
	}
	if len(bridge.calls) != 2 || bridge.calls[1].Op != "arm" || bridge.calls[1].Sense != EntryFor(3).Sense {
		t.Errorf("Expected pattern then arm for step 3, got %+v", bridge.calls)
	}
}

func TestZeroCrossingFullCycle(t *testing.T) {
	ctrl, bridge := newEngagedController(t)
	if err := ctrl.TransitionToRunning(); err != nil {
		t.Fatalf("TransitionToRunning failed: %v", err)
	}
	bridge.reset()

	for i := 1; i <= 2*StepCount; i++ {
		RunInterrupt(ctrl.OnZeroCrossing)
		want := Step(i % StepCount)
		if bridge.pattern != EntryFor(want).Drive {
			t.Errorf("Crossing %d: expected %s, got %s", i, EntryFor(want).Drive, bridge.pattern)
		}
		if bridge.sense != EntryFor(want).Sense {
			t.Errorf("Crossing %d: expected sense %s, got %s", i, EntryFor(want).Sense, bridge.sense)
		}
	}

	status := ctrl.Snapshot()
	if status.Step != 0 {
		t.Errorf("Expected to be back at step 0, got %d", status.Step)
	}
	if status.ZeroCrossings != 2*StepCount {
		t.Errorf("Expected %d zero crossings, got %d", 2*StepCount, status.ZeroCrossings)
	}
}

func TestZeroCrossingFault(t *testing.T) {
	ctrl, bridge := newEngagedController(t)
	if err := ctrl.TransitionToRunning(); err != nil {
		t.Fatalf("TransitionToRunning failed: %v", err)
	}
	bridge.armErr = errors.New("comparator busy")

	RunInterrupt(ctrl.OnZeroCrossing)

	status := ctrl.Snapshot()
	if status.Faults != 1 {
		t.Errorf("Expected 1 fault, got %d", status.Faults)
	}
	if status.Step != 1 {
		t.Errorf("Step should still advance on fault, got %d", status.Step)
	}

	events := TimingEvents()
	if len(events) == 0 || events[len(events)-1].EventType != EvtFault {
		t.Errorf("Expected last timing event to be a fault, got %+v", events)
	}
}

func TestHalt(t *testing.T) {
	ctrl, bridge := newEngagedController(t)
	if err := ctrl.TransitionToRunning(); err != nil {
		t.Fatalf("TransitionToRunning failed: %v", err)
	}
	bridge.reset()

	if err := ctrl.Halt(); err != nil {
		t.Fatalf("Halt failed: %v", err)
	}
	if len(bridge.calls) != 2 || bridge.calls[0].Op != "disarm" || bridge.calls[1].Op != "release" {
		t.Errorf("Expected disarm then release, got %+v", bridge.calls)
	}
	if bridge.asserted {
		t.Error("Bridge still asserted after Halt")
	}

	// A late event after Halt is dropped
	bridge.reset()
	RunInterrupt(ctrl.OnZeroCrossing)
	if len(bridge.calls) != 0 {
		t.Errorf("Event after Halt reached the bridge: %+v", bridge.calls)
	}
}

func TestEngageResets(t *testing.T) {
	ctrl, _ := newEngagedController(t)
	ctrl.ForceStepAdvance()
	ctrl.ForceStepAdvance()
	ctrl.TransitionToRunning()
	RunInterrupt(ctrl.OnZeroCrossing)

	if err := ctrl.Engage(); err != nil {
		t.Fatalf("Engage failed: %v", err)
	}
	status := ctrl.Snapshot()
	if status != (Status{Step: 0, Mode: ModeStarting, Engaged: true}) {
		t.Errorf("Engage did not reset state: %+v", status)
	}
}

func TestHaltReleasesWhenDisarmFails(t *testing.T) {
	ctrl, bridge := newEngagedController(t)
	bridge.disarmErr = errors.New("comparator busy")

	err := ctrl.Halt()
	if err != bridge.disarmErr {
		t.Errorf("Expected the disarm error, got %v", err)
	}
	if bridge.asserted {
		t.Error("Bridge still asserted after Halt")
	}
	if len(bridge.ops("release")) != 1 {
		t.Errorf("Expected one release, got %d", len(bridge.ops("release")))
	}
	if ctrl.Snapshot().Engaged {
		t.Error("Controller reports engaged after Halt")
	}
}

func TestEngagePatternFailure(t *testing.T) {
	ctrl, bridge := newEngagedController(t)
	ctrl.ForceStepAdvance()
	bridge.patternErr = errors.New("gate fault")

	if err := ctrl.Engage(); err != bridge.patternErr {
		t.Fatalf("Expected the pattern error, got %v", err)
	}
	status := ctrl.Snapshot()
	if status.Engaged {
		t.Error("Controller reports engaged after a failed Engage")
	}
	if status.Step != 0 || status.Mode != ModeStarting {
		t.Errorf("Unexpected status after failed Engage: %+v", status)
	}

	// Events are refused while not engaged
	ctrl.TransitionToRunning()
	bridge.reset()
	RunInterrupt(ctrl.OnZeroCrossing)
	if len(bridge.ops("pattern")) != 0 {
		t.Errorf("Event reached the bridge after a failed Engage: %+v", bridge.calls)
	}
}
