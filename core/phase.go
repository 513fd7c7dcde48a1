package core

// Phase identifies one of the three motor windings
type Phase uint8

const (
	PhaseU Phase = iota
	PhaseV
	PhaseW

	PhaseCount = 3
)

// String returns the winding letter
func (p Phase) String() string {
	switch p {
	case PhaseU:
		return "U"
	case PhaseV:
		return "V"
	case PhaseW:
		return "W"
	default:
		return "?"
	}
}

// Edge is the BEMF comparator edge that marks a zero crossing
type Edge uint8

const (
	EdgeRising Edge = iota
	EdgeFalling
)

// String returns "rising" or "falling"
func (e Edge) String() string {
	if e == EdgeFalling {
		return "falling"
	}
	return "rising"
}

// Step is the rotor's electrical sector, always in [0, StepCount)
type Step uint8

// StepCount is the number of commutation states per electrical revolution
const StepCount = 6

// Next returns the following step, wrapping after the last one
func (s Step) Next() Step {
	return (s%StepCount + 1) % StepCount
}

// DrivePattern is the pair of energised phases: one high-side and one
// low-side switch. The third phase floats.
type DrivePattern struct {
	High Phase // Phase whose high-side switch is PWM-driven
	Low  Phase // Phase whose low-side switch is held on
}

// Valid reports whether the pattern names two distinct, existing phases
func (d DrivePattern) Valid() bool {
	return d.High < PhaseCount && d.Low < PhaseCount && d.High != d.Low
}

// Floating returns the phase left unconnected by the pattern
func (d DrivePattern) Floating() Phase {
	// U+V+W = 0+1+2 = 3
	return Phase(3 - uint8(d.High) - uint8(d.Low))
}

// String formats the pattern like the gate names, e.g. "UH_VL"
func (d DrivePattern) String() string {
	return d.High.String() + "H_" + d.Low.String() + "L"
}

// SenseConfig selects the floating phase to watch and the edge that fires
type SenseConfig struct {
	Phase Phase
	Edge  Edge
}

// String formats the config, e.g. "W rising"
func (s SenseConfig) String() string {
	return s.Phase.String() + " " + s.Edge.String()
}

// CommutationEntry is one row of the commutation table
type CommutationEntry struct {
	Drive DrivePattern
	Sense SenseConfig
}

// MotorMode selects what triggers the next step advance
type MotorMode uint8

const (
	ModeStarting MotorMode = iota // Timed, open-loop advances
	ModeRunning                   // Zero-crossing driven advances
)

// String returns the mode name
func (m MotorMode) String() string {
	if m == ModeRunning {
		return "running"
	}
	return "starting"
}

// DutyCycle is the PWM compare value applied to the high-side switch
type DutyCycle uint16
