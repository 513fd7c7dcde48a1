package protocol

import "errors"

var (
	ErrPayloadTooLarge = errors.New("payload does not fit in one frame")
	ErrOutputFull      = errors.New("output buffer full")
)

// EncodeFrame appends one frame carrying payload to output
func EncodeFrame(output *ScratchOutput, seq uint8, payload []byte) error {
	if len(payload) > FramePayloadMax {
		return ErrPayloadTooLarge
	}
	total := len(payload) + FrameLengthMin
	if output.Free() < total {
		return ErrOutputFull
	}

	start := output.CurPosition()
	output.Output([]byte{uint8(total), FrameDest | (seq & FrameSeqMask)})
	output.Output(payload)

	crc := CRC16(output.DataSince(start))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), FrameValueSync})
	return nil
}

// FrameHandler receives the sequence number and payload of a valid frame.
// The payload aliases the decoder's buffer and is only valid during the call.
type FrameHandler func(seq uint8, payload []byte)

// FrameDecoder reassembles frames from a byte stream. On a bad length,
// destination, sync byte or CRC it drops bytes until the next sync byte.
type FrameDecoder struct {
	buf    [FrameLengthMax * 2]byte
	n      int
	synced bool

	Frames uint32 // Valid frames delivered
	Errors uint32 // Frames discarded
}

// NewFrameDecoder returns a decoder that starts synchronized
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{synced: true}
}

// Feed consumes data and calls handler for every complete, valid frame
func (d *FrameDecoder) Feed(data []byte, handler FrameHandler) {
	for len(data) > 0 {
		n := copy(d.buf[d.n:], data)
		d.n += n
		data = data[n:]
		d.process(handler)
	}
}

// Reset drops any partial frame
func (d *FrameDecoder) Reset() {
	d.n = 0
	d.synced = true
}

func (d *FrameDecoder) process(handler FrameHandler) {
	pending := d.buf[:d.n]

	for len(pending) > 0 {
		if !d.synced {
			i := 0
			for i < len(pending) && pending[i] != FrameValueSync {
				i++
			}
			if i == len(pending) {
				pending = pending[:0]
				break
			}
			pending = pending[i+1:]
			d.synced = true
			continue
		}

		if pending[0] == FrameValueSync {
			pending = pending[1:]
			continue
		}
		if len(pending) < FrameLengthMin {
			break
		}

		frameLen := int(pending[FramePositionLen])
		seq := pending[FramePositionSeq]
		if frameLen < FrameLengthMin || frameLen > FrameLengthMax || seq&^FrameSeqMask != FrameDest {
			d.desync()
			continue
		}
		if len(pending) < frameLen {
			break
		}

		frame := pending[:frameLen]
		crc := uint16(frame[frameLen-3])<<8 | uint16(frame[frameLen-2])
		if frame[frameLen-1] != FrameValueSync || crc != CRC16(frame[:frameLen-FrameTrailerSize]) {
			// Resync from here; the search stops at this frame's own sync byte
			d.desync()
			continue
		}
		pending = pending[frameLen:]

		d.Frames++
		if handler != nil {
			handler(seq&FrameSeqMask, frame[FrameHeaderSize:frameLen-FrameTrailerSize])
		}
	}

	// Keep the unconsumed tail at the front of the buffer
	d.n = copy(d.buf[:], pending)
}

func (d *FrameDecoder) desync() {
	d.Errors++
	d.synced = false
}
