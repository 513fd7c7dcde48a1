package core

import "errors"

var (
	ErrPatternInvalid   = errors.New("drive pattern must name two distinct phases")
	ErrSenseNotFloating = errors.New("sense phase is not the floating phase")
	ErrSenseRepeated    = errors.New("sense configuration used more than once per cycle")
	ErrPatternRepeated  = errors.New("drive pattern used more than once per cycle")
	ErrRotationBroken   = errors.New("consecutive patterns must share exactly one phase")
)

// commutationTable is the six-step law for a star-wound motor turning
// forward. Each row keeps one phase of the previous row energised and
// watches the phase that was just released.
var commutationTable = [StepCount]CommutationEntry{
	{Drive: DrivePattern{High: PhaseU, Low: PhaseV}, Sense: SenseConfig{Phase: PhaseW, Edge: EdgeRising}},
	{Drive: DrivePattern{High: PhaseU, Low: PhaseW}, Sense: SenseConfig{Phase: PhaseV, Edge: EdgeFalling}},
	{Drive: DrivePattern{High: PhaseV, Low: PhaseW}, Sense: SenseConfig{Phase: PhaseU, Edge: EdgeRising}},
	{Drive: DrivePattern{High: PhaseV, Low: PhaseU}, Sense: SenseConfig{Phase: PhaseW, Edge: EdgeFalling}},
	{Drive: DrivePattern{High: PhaseW, Low: PhaseU}, Sense: SenseConfig{Phase: PhaseV, Edge: EdgeRising}},
	{Drive: DrivePattern{High: PhaseW, Low: PhaseV}, Sense: SenseConfig{Phase: PhaseU, Edge: EdgeFalling}},
}

// EntryFor returns the drive pattern and sense configuration for a step.
// The step is reduced modulo StepCount first, so every value is valid.
func EntryFor(step Step) CommutationEntry {
	return commutationTable[step%StepCount]
}

// ValidateTable checks the structural rules of the commutation table
func ValidateTable() error {
	return validateTable(&commutationTable)
}

func validateTable(table *[StepCount]CommutationEntry) error {
	var seenDrive [PhaseCount][PhaseCount]bool
	var seenSense [PhaseCount][2]bool

	for i := range table {
		entry := table[i]
		if !entry.Drive.Valid() {
			return ErrPatternInvalid
		}
		if entry.Sense.Phase != entry.Drive.Floating() {
			return ErrSenseNotFloating
		}

		if seenDrive[entry.Drive.High][entry.Drive.Low] {
			return ErrPatternRepeated
		}
		seenDrive[entry.Drive.High][entry.Drive.Low] = true

		if seenSense[entry.Sense.Phase][entry.Sense.Edge] {
			return ErrSenseRepeated
		}
		seenSense[entry.Sense.Phase][entry.Sense.Edge] = true

		// Exactly one switch changes between neighbouring rows
		next := table[(i+1)%StepCount].Drive
		shared := 0
		if next.High == entry.Drive.High {
			shared++
		}
		if next.Low == entry.Drive.Low {
			shared++
		}
		if shared != 1 {
			return ErrRotationBroken
		}
	}

	return nil
}
