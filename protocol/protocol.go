// Package protocol implements the framing used on the telemetry link
// between the drive firmware and the host tools.
//
// A frame is laid out as
//
//	[length][sequence][payload ...][crc high][crc low][sync]
//
// where length counts every byte of the frame, sequence carries FrameDest
// in its high nibble and a rolling counter in the low nibble, and the CRC
// covers length, sequence and payload.
package protocol

// Version is the link protocol version reported by the firmware
const Version = "sixstep-link-1"

// Frame constants
const (
	FrameHeaderSize  = 2 // length + sequence
	FrameTrailerSize = 3 // crc (2) + sync
	FrameLengthMin   = FrameHeaderSize + FrameTrailerSize
	FrameLengthMax   = 64
	FramePayloadMax  = FrameLengthMax - FrameLengthMin

	FramePositionLen = 0
	FramePositionSeq = 1

	FrameValueSync = 0x7E
	FrameDest      = 0x10
	FrameSeqMask   = 0x0F

	// MessageMax is the capacity of a ScratchOutput
	MessageMax = 512
)
