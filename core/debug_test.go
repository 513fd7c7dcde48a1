package core

import (
	"strings"
	"testing"
)

func TestTimingRingKeepsNewest(t *testing.T) {
	ClearTimingRing()

	total := TimingRingSize + 8
	for i := 0; i < total; i++ {
		RecordTiming(EvtForceStep, uint8(i%StepCount), uint32(i*10), uint32(i), 0)
	}

	events := TimingEvents()
	if len(events) != TimingRingSize {
		t.Fatalf("Expected %d events, got %d", TimingRingSize, len(events))
	}
	if events[0].Value1 != 8 {
		t.Errorf("Oldest event should be #8, got #%d", events[0].Value1)
	}
	if last := events[len(events)-1]; last.Value1 != uint32(total-1) {
		t.Errorf("Newest event should be #%d, got #%d", total-1, last.Value1)
	}
}

func TestTimingRingDisabled(t *testing.T) {
	ClearTimingRing()
	SetTimingEnabled(false)
	RecordTiming(EvtHalt, 0, 0, 0, 0)
	SetTimingEnabled(true)

	if len(TimingEvents()) != 0 {
		t.Error("Disabled ring recorded an event")
	}
}

func TestDumpTimingRing(t *testing.T) {
	ClearTimingRing()
	RecordTiming(EvtEngage, 0, 10, 0, 0)
	RecordTiming(EvtZeroCross, 3, 250, 42, 0)

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	DumpTimingRing()

	if len(lines) != 4 {
		t.Fatalf("Expected header, 2 events and footer, got %q", lines)
	}
	if !strings.Contains(lines[1], "ENGAGE") {
		t.Errorf("Unexpected first event line: %q", lines[1])
	}
	if lines[2] != "[TIMING] ZERO_CROSS step=3 clock=250 v1=42 v2=0" {
		t.Errorf("Unexpected second event line: %q", lines[2])
	}
}

func TestDebugPrintlnGated(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if len(got) != 1 || got[0] != "shown" {
		t.Errorf("Expected only the enabled message, got %q", got)
	}
}

func TestItoa(t *testing.T) {
	testCases := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{7, "7"},
		{-42, "-42"},
		{123456, "123456"},
	}
	for _, tc := range testCases {
		if got := itoa(tc.n); got != tc.want {
			t.Errorf("itoa(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
	if got := utoa(4294967295); got != "4294967295" {
		t.Errorf("utoa(max) = %q", got)
	}
}
