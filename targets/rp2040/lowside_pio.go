//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PIO program for the low-side gates
// Each word pulled from the TX FIFO is a 3-bit gate mask, bit n for phase n,
// written to three consecutive pins in the same cycle.
//
// buildLowSideProgram creates the program using AssemblerV0
func buildLowSideProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestPins, 3).Encode(), // 1: out pins, 3
		// .wrap
	}
}

const lowSidePIOOrigin = -1 // Any free offset; the program has no jumps

// PIOLowSide implements core.LowSideDriver on a PIO state machine so the
// three gates switch together instead of in three GPIO writes
type PIOLowSide struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	base   machine.Pin
	offset uint8
}

// NewPIOLowSide claims state machine smNum of PIO block pioNum and drives
// pins base, base+1 and base+2 low
func NewPIOLowSide(pioNum, smNum uint8, base machine.Pin) (*PIOLowSide, error) {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	l := &PIOLowSide{
		pio:  pioHW,
		sm:   pioHW.StateMachine(smNum),
		base: base,
	}

	// Claim the state machine before touching its registers
	l.sm.TryClaim()

	program := buildLowSideProgram()
	offset, err := l.pio.AddProgram(program, lowSidePIOOrigin)
	if err != nil {
		return nil, err
	}
	l.offset = offset

	for i := machine.Pin(0); i < 3; i++ {
		(base + i).Configure(machine.PinConfig{Mode: l.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(base, 3)
	// Shift right so bit 0 lands on base; explicit pull, no autopull
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	l.sm.Init(offset, cfg)

	// Pin directions and levels must be set after Init
	l.sm.SetPinsConsecutive(base, 3, false)
	l.sm.SetPindirsConsecutive(base, 3, true)

	l.sm.SetEnabled(true)
	return l, nil
}

// SetLowSide queues a gate mask; the state machine applies it within a
// few cycles
func (l *PIOLowSide) SetLowSide(mask uint8) error {
	for l.sm.IsTxFIFOFull() {
		// Busy wait - the program drains one word every two cycles
	}
	l.sm.TxPut(uint32(mask & 0x7))
	return nil
}
