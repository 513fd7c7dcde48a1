package core

// bridgeCall is one recorded call on the mock bridge
type bridgeCall struct {
	Op      string // "pattern", "duty", "release", "arm", "disarm"
	Pattern DrivePattern
	Sense   SenseConfig
	Duty    DutyCycle
	Time    uint32
}

// mockBridge implements PhaseDriver and ZeroCrossingSensor and records
// every call in one log, so tests can check ordering across the two.
type mockBridge struct {
	calls []bridgeCall

	asserted bool
	pattern  DrivePattern
	armed    bool
	sense    SenseConfig
	duty     DutyCycle

	patternErr error
	armErr     error
	disarmErr  error
}

func (m *mockBridge) SetPattern(pattern DrivePattern) error {
	m.calls = append(m.calls, bridgeCall{Op: "pattern", Pattern: pattern, Time: GetTime()})
	if m.patternErr != nil {
		return m.patternErr
	}
	m.asserted = true
	m.pattern = pattern
	return nil
}

func (m *mockBridge) SetDuty(duty DutyCycle) error {
	m.calls = append(m.calls, bridgeCall{Op: "duty", Duty: duty, Time: GetTime()})
	m.duty = duty
	return nil
}

func (m *mockBridge) Release() error {
	m.calls = append(m.calls, bridgeCall{Op: "release", Time: GetTime()})
	m.asserted = false
	return nil
}

func (m *mockBridge) Arm(cfg SenseConfig) error {
	m.calls = append(m.calls, bridgeCall{Op: "arm", Sense: cfg, Time: GetTime()})
	if m.armErr != nil {
		return m.armErr
	}
	m.armed = true
	m.sense = cfg
	return nil
}

func (m *mockBridge) Disarm() error {
	m.calls = append(m.calls, bridgeCall{Op: "disarm", Time: GetTime()})
	if m.disarmErr != nil {
		return m.disarmErr
	}
	m.armed = false
	return nil
}

// ops returns the recorded calls with the given op
func (m *mockBridge) ops(op string) []bridgeCall {
	var out []bridgeCall
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockBridge) reset() {
	m.calls = nil
}

// resetCoreState clears the global scheduler, clock and timing ring
func resetCoreState() {
	ResetTimers()
	SetTime(0)
	currentTime = 0
	ClearTimingRing()
}
