package core

import (
	"errors"
	"testing"
)

var defaultStartup = StartupConfig{
	InitialDelayUS: 5000,
	DecrementUS:    20,
	FloorUS:        100,
}

func TestNextDelay(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      StartupConfig
		current  uint32
		wantNext uint32
		wantDone bool
	}{
		{"first step", defaultStartup, 5000, 4980, false},
		{"above floor", defaultStartup, 140, 120, false},
		{"reaches floor", defaultStartup, 120, 100, true},
		{"crosses floor", StartupConfig{1000, 30, 100}, 120, 90, true},
		{"saturates at zero", StartupConfig{1000, 300, 0}, 200, 0, true},
		{"zero decrement", StartupConfig{1000, 0, 100}, 1000, 1000, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, done := NextDelay(tc.cfg, tc.current)
			if next != tc.wantNext || done != tc.wantDone {
				t.Errorf("NextDelay(%d) = (%d, %v), want (%d, %v)",
					tc.current, next, done, tc.wantNext, tc.wantDone)
			}
		})
	}
}

func TestNextDelayMonotonic(t *testing.T) {
	delay := defaultStartup.InitialDelayUS
	steps := uint32(0)
	for {
		next, done := NextDelay(defaultStartup, delay)
		if next >= delay {
			t.Fatalf("Delay did not shrink: %d -> %d", delay, next)
		}
		delay = next
		steps++
		if done {
			break
		}
	}

	if delay > defaultStartup.FloorUS {
		t.Errorf("Final delay %d above floor %d", delay, defaultStartup.FloorUS)
	}
	if steps != StartupAdvances(defaultStartup) {
		t.Errorf("Ramp took %d steps, StartupAdvances says %d", steps, StartupAdvances(defaultStartup))
	}
}

func TestStartupAdvances(t *testing.T) {
	testCases := []struct {
		cfg  StartupConfig
		want uint32
	}{
		{defaultStartup, 245},
		{StartupConfig{1000, 30, 100}, 30},
		{StartupConfig{100, 20, 100}, 0},
		{StartupConfig{1000, 0, 100}, 0},
	}

	for _, tc := range testCases {
		if got := StartupAdvances(tc.cfg); got != tc.want {
			t.Errorf("StartupAdvances(%+v) = %d, want %d", tc.cfg, got, tc.want)
		}
	}
}

// runRamp advances the clock to each pending wake time until the ramp ends
func runRamp(t *testing.T, seq *StartupSequencer) {
	t.Helper()
	for i := 0; i < 10000 && !seq.Done(); i++ {
		if timerList == nil {
			t.Fatal("Ramp not done but no timer scheduled")
		}
		SetTime(timerList.WakeTime)
		ProcessTimers()
	}
	if !seq.Done() {
		t.Fatal("Ramp did not finish")
	}
}

func TestStartupSequenceEndToEnd(t *testing.T) {
	resetCoreState()
	SetTimingEnabled(false)
	defer SetTimingEnabled(true)

	bridge := &mockBridge{}
	ctrl := NewCommutationController(bridge, bridge)
	seq := NewStartupSequencer(defaultStartup, ctrl)

	if err := seq.Start(GetTime()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	runRamp(t, seq)

	if seq.Err() != nil {
		t.Fatalf("Ramp error: %v", seq.Err())
	}
	if seq.Advances() != 245 {
		t.Errorf("Expected 245 forced advances, got %d", seq.Advances())
	}
	if seq.Delay() > defaultStartup.FloorUS {
		t.Errorf("Final delay %d above floor", seq.Delay())
	}

	// Engage plus 245 forced advances
	patterns := bridge.ops("pattern")
	if len(patterns) != 246 {
		t.Fatalf("Expected 246 commutations, got %d", len(patterns))
	}
	for i, c := range patterns {
		if want := EntryFor(Step(i % StepCount)).Drive; c.Pattern != want {
			t.Fatalf("Commutation %d: expected %s, got %s", i, want, c.Pattern)
		}
		if i > 0 {
			gap := c.Time - patterns[i-1].Time
			if want := defaultStartup.InitialDelayUS - uint32(i-1)*defaultStartup.DecrementUS; gap != want {
				t.Errorf("Commutation %d: waited %d us, want %d", i, gap, want)
			}
		}
	}

	// The sensor is armed exactly once, after the last forced advance
	arms := bridge.ops("arm")
	if len(arms) != 1 {
		t.Fatalf("Expected exactly one arm, got %d", len(arms))
	}
	if arms[0].Sense != EntryFor(245%StepCount).Sense {
		t.Errorf("Armed %s, want %s", arms[0].Sense, EntryFor(245%StepCount).Sense)
	}
	if bridge.calls[len(bridge.calls)-1].Op != "arm" {
		t.Errorf("Last call should be the arm, got %+v", bridge.calls[len(bridge.calls)-1])
	}

	status := ctrl.Snapshot()
	if status.Mode != ModeRunning || status.Step != 245%StepCount {
		t.Errorf("Unexpected status after ramp: %+v", status)
	}
	if timerList != nil {
		t.Error("Sequencer left a timer scheduled")
	}
}

func TestStartupAlreadyAtFloor(t *testing.T) {
	resetCoreState()

	bridge := &mockBridge{}
	ctrl := NewCommutationController(bridge, bridge)
	seq := NewStartupSequencer(StartupConfig{InitialDelayUS: 100, DecrementUS: 20, FloorUS: 100}, ctrl)

	if err := seq.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !seq.Done() {
		t.Fatal("Ramp at floor should finish immediately")
	}
	if len(bridge.ops("pattern")) != 1 || len(bridge.ops("arm")) != 1 {
		t.Errorf("Expected Engage then arm, got %+v", bridge.calls)
	}
	if ctrl.Snapshot().Mode != ModeRunning {
		t.Error("Expected running mode")
	}
}

func TestStartupStop(t *testing.T) {
	resetCoreState()

	bridge := &mockBridge{}
	ctrl := NewCommutationController(bridge, bridge)
	seq := NewStartupSequencer(defaultStartup, ctrl)

	if err := seq.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	SetTime(5000)
	ProcessTimers()
	if seq.Advances() != 1 {
		t.Fatalf("Expected 1 advance, got %d", seq.Advances())
	}

	seq.Stop()
	SetTime(1000000)
	ProcessTimers()

	if seq.Advances() != 1 {
		t.Errorf("Advances continued after Stop: %d", seq.Advances())
	}
	if seq.Done() {
		t.Error("A stopped ramp is not done")
	}
	if len(bridge.ops("arm")) != 0 {
		t.Error("Stopped ramp armed the sensor")
	}
}

func TestStartupRestart(t *testing.T) {
	resetCoreState()

	bridge := &mockBridge{}
	ctrl := NewCommutationController(bridge, bridge)
	seq := NewStartupSequencer(StartupConfig{1000, 100, 500}, ctrl)

	seq.Start(0)
	runRamp(t, seq)
	first := seq.Advances()

	// Starting again re-engages at step 0 and repeats the same ramp
	if err := seq.Start(GetTime()); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if ctrl.Snapshot().Mode != ModeStarting || ctrl.Snapshot().Step != 0 {
		t.Errorf("Restart did not re-engage: %+v", ctrl.Snapshot())
	}
	runRamp(t, seq)
	if seq.Advances() != first {
		t.Errorf("Second ramp took %d advances, first took %d", seq.Advances(), first)
	}
}

func TestStartupTransitionFailure(t *testing.T) {
	resetCoreState()

	bridge := &mockBridge{armErr: errors.New("comparator busy")}
	ctrl := NewCommutationController(bridge, bridge)
	seq := NewStartupSequencer(StartupConfig{1000, 100, 500}, ctrl)

	if err := seq.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	runRamp(t, seq)

	if seq.Err() != bridge.armErr {
		t.Errorf("Expected the arm error, got %v", seq.Err())
	}
	if seq.Advances() != StartupAdvances(StartupConfig{1000, 100, 500}) {
		t.Errorf("Expected a full ramp before the failure, got %d advances", seq.Advances())
	}
	if timerList != nil {
		t.Error("Failed ramp left a timer scheduled")
	}
}
