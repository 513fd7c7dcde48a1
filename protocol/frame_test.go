package protocol

import (
	"bytes"
	"testing"
)

type receivedFrame struct {
	seq     uint8
	payload []byte
}

func collect(frames *[]receivedFrame) FrameHandler {
	return func(seq uint8, payload []byte) {
		*frames = append(*frames, receivedFrame{seq: seq, payload: append([]byte(nil), payload...)})
	}
}

func encodeTestFrame(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	output := NewScratchOutput()
	if err := EncodeFrame(output, seq, payload); err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	return append([]byte(nil), output.Result()...)
}

func TestEncodeFrameLayout(t *testing.T) {
	frame := encodeTestFrame(t, 3, []byte{0x01, 0x02})

	if len(frame) != 7 {
		t.Fatalf("Expected 7 byte frame, got %d: %v", len(frame), frame)
	}
	if frame[FramePositionLen] != 7 {
		t.Errorf("Expected length byte 7, got %d", frame[FramePositionLen])
	}
	if frame[FramePositionSeq] != FrameDest|3 {
		t.Errorf("Expected sequence byte 0x13, got 0x%02X", frame[FramePositionSeq])
	}
	if frame[len(frame)-1] != FrameValueSync {
		t.Errorf("Expected trailing sync byte, got 0x%02X", frame[len(frame)-1])
	}
	crc := CRC16(frame[:4])
	if frame[4] != uint8(crc>>8) || frame[5] != uint8(crc) {
		t.Errorf("CRC bytes %02X%02X do not match 0x%04X", frame[4], frame[5], crc)
	}
}

func TestEncodeFrameTooLarge(t *testing.T) {
	output := NewScratchOutput()
	err := EncodeFrame(output, 0, make([]byte, FramePayloadMax+1))
	if err != ErrPayloadTooLarge {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
	if output.CurPosition() != 0 {
		t.Errorf("Nothing should be written on error, position is %d", output.CurPosition())
	}
}

func TestFrameDecoderRoundTrip(t *testing.T) {
	var stream []byte
	payloads := [][]byte{{}, {0x01}, {0x10, 0x7E, 0x20}, make([]byte, FramePayloadMax)}
	for i, p := range payloads {
		stream = append(stream, encodeTestFrame(t, uint8(i), p)...)
	}

	var frames []receivedFrame
	d := NewFrameDecoder()
	d.Feed(stream, collect(&frames))

	if len(frames) != len(payloads) {
		t.Fatalf("Expected %d frames, got %d", len(payloads), len(frames))
	}
	for i, f := range frames {
		if f.seq != uint8(i) {
			t.Errorf("Frame %d: expected seq %d, got %d", i, i, f.seq)
		}
		if !bytes.Equal(f.payload, payloads[i]) {
			t.Errorf("Frame %d: payload mismatch: %v", i, f.payload)
		}
	}
	if d.Errors != 0 {
		t.Errorf("Expected no errors, got %d", d.Errors)
	}
}

func TestFrameDecoderByteAtATime(t *testing.T) {
	stream := encodeTestFrame(t, 1, []byte{0xAA, 0xBB, 0xCC})

	var frames []receivedFrame
	d := NewFrameDecoder()
	for _, b := range stream {
		d.Feed([]byte{b}, collect(&frames))
	}

	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].payload, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("Payload mismatch: %v", frames[0].payload)
	}
}

func TestFrameDecoderResync(t *testing.T) {
	good := encodeTestFrame(t, 2, []byte{0x42})
	corrupt := encodeTestFrame(t, 1, []byte{0x41})
	corrupt[2] ^= 0xFF // Break the CRC

	testCases := []struct {
		name   string
		stream []byte
	}{
		{"garbage prefix", append([]byte{0x00, 0x55, 0x7E}, good...)},
		{"bad crc", append(append([]byte(nil), corrupt...), good...)},
		{"bad length", append([]byte{0xFF, 0x10, 0x00, 0x00, 0x7E}, good...)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var frames []receivedFrame
			d := NewFrameDecoder()
			d.Feed(tc.stream, collect(&frames))

			if len(frames) != 1 {
				t.Fatalf("Expected 1 frame after resync, got %d", len(frames))
			}
			if frames[0].seq != 2 || !bytes.Equal(frames[0].payload, []byte{0x42}) {
				t.Errorf("Unexpected frame: %+v", frames[0])
			}
			t.Logf("%s: %d errors before resync", tc.name, d.Errors)
		})
	}
}
