package core

import (
	"errors"
	"sync/atomic"

	"sixstep/protocol"
)

// Link message IDs, in registration order (see NewLinkRegistry)
const (
	MsgStatus       uint16 = iota // firmware -> host
	MsgThrottleUp                 // host -> firmware
	MsgThrottleDown               // host -> firmware
	MsgHalt                       // host -> firmware
	MsgRestart                    // host -> firmware
	MsgLog                        // firmware -> host
	MsgIdentify                   // host -> firmware
	MsgIdentifyResponse           // firmware -> host
)

// identifyChunk is the largest dictionary slice sent per response
const identifyChunk = 40

var ErrBadTelemetry = errors.New("malformed status message")

// NewLinkRegistry registers every link message without handlers. The
// firmware attaches handlers with Drive.RegisterCommands.
func NewLinkRegistry() *CommandRegistry {
	r := NewCommandRegistry()
	r.Register("status", "step=%c mode=%c engaged=%c duty=%hu forced=%u zero_crossings=%u faults=%u delay=%u clock=%u", nil)
	r.Register("throttle_up", "", nil)
	r.Register("throttle_down", "", nil)
	r.Register("halt", "", nil)
	r.Register("restart", "", nil)
	r.Register("log", "msg=%*s", nil)
	r.Register("identify", "offset=%u count=%c", nil)
	r.Register("identify_response", "offset=%u data=%*s", nil)
	return r
}

// Telemetry is the periodic status report sent to the host
type Telemetry struct {
	Status
	Duty           DutyCycle
	StartupDelayUS uint32 // Current ramp delay, frozen once running
	Clock          uint32
}

// EncodeStatus writes a complete status message, ID included
func EncodeStatus(output protocol.OutputBuffer, t Telemetry) {
	engaged := uint32(0)
	if t.Engaged {
		engaged = 1
	}
	protocol.EncodeVLQUint(output, uint32(MsgStatus))
	protocol.EncodeVLQUint(output, uint32(t.Step))
	protocol.EncodeVLQUint(output, uint32(t.Mode))
	protocol.EncodeVLQUint(output, engaged)
	protocol.EncodeVLQUint(output, uint32(t.Duty))
	protocol.EncodeVLQUint(output, t.ForcedSteps)
	protocol.EncodeVLQUint(output, t.ZeroCrossings)
	protocol.EncodeVLQUint(output, t.Faults)
	protocol.EncodeVLQUint(output, t.StartupDelayUS)
	protocol.EncodeVLQUint(output, t.Clock)
}

// DecodeStatus reads the arguments of a status message. The message ID
// must already have been consumed.
func DecodeStatus(data *[]byte) (Telemetry, error) {
	var fields [9]uint32
	for i := range fields {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return Telemetry{}, err
		}
		fields[i] = v
	}
	if fields[0] >= StepCount || fields[1] > uint32(ModeRunning) || fields[2] > 1 || fields[3] > 0xFFFF {
		return Telemetry{}, ErrBadTelemetry
	}

	return Telemetry{
		Status: Status{
			Step:          Step(fields[0]),
			Mode:          MotorMode(fields[1]),
			Engaged:       fields[2] == 1,
			ForcedSteps:   fields[4],
			ZeroCrossings: fields[5],
			Faults:        fields[6],
		},
		Duty:           DutyCycle(fields[3]),
		StartupDelayUS: fields[7],
		Clock:          fields[8],
	}, nil
}

// DecodeLog reads the arguments of a log message
func DecodeLog(data *[]byte) (string, error) {
	msg, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

// Identity returns the text the firmware serves to identify requests:
// the protocol version followed by the message dictionary
func Identity(r *CommandRegistry) string {
	return "version " + protocol.Version + "\n" + r.GetDictionary()
}

// LinkWriter sends one encoded frame to the other end
type LinkWriter func(frame []byte) error

// Link is one end of the framed command/telemetry channel. Outgoing
// messages are encoded into fixed buffers; incoming frames are dispatched
// through the registry. Send and Receive may run on different goroutines,
// but neither may be called concurrently with itself.
type Link struct {
	registry *CommandRegistry
	decoder  *protocol.FrameDecoder
	write    LinkWriter

	payload protocol.ScratchOutput
	frame   protocol.ScratchOutput
	seq     uint8

	failures uint32 // atomic
}

// NewLink creates a link that dispatches through registry and sends with write
func NewLink(registry *CommandRegistry, write LinkWriter) *Link {
	return &Link{
		registry: registry,
		decoder:  protocol.NewFrameDecoder(),
		write:    write,
	}
}

// Registry returns the link's message registry
func (l *Link) Registry() *CommandRegistry {
	return l.registry
}

// Receive feeds raw bytes from the transport and dispatches every
// complete frame
func (l *Link) Receive(data []byte) {
	l.decoder.Feed(data, l.handleFrame)
}

func (l *Link) handleFrame(seq uint8, payload []byte) {
	data := payload
	for len(data) > 0 {
		id, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			atomic.AddUint32(&l.failures, 1)
			return
		}
		if err := l.registry.Dispatch(uint16(id), &data); err != nil {
			atomic.AddUint32(&l.failures, 1)
			DebugPrintln("[LINK] dispatch " + utoa(id) + " failed: " + err.Error())
			return
		}
	}
}

// Send encodes one message and writes it as a frame
func (l *Link) Send(id uint16, args func(output protocol.OutputBuffer)) error {
	l.payload.Reset()
	protocol.EncodeVLQUint(&l.payload, uint32(id))
	if args != nil {
		args(&l.payload)
	}
	return l.flush()
}

// SendStatus writes a status message
func (l *Link) SendStatus(t Telemetry) error {
	l.payload.Reset()
	EncodeStatus(&l.payload, t)
	return l.flush()
}

// SendLog writes a log message, truncated to fit one frame
func (l *Link) SendLog(msg string) error {
	max := protocol.FramePayloadMax - 3
	if len(msg) > max {
		msg = msg[:max]
	}
	return l.Send(MsgLog, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQBytes(output, []byte(msg))
	})
}

// ServeIdentify answers identify requests with chunks of Identity
func (l *Link) ServeIdentify() {
	identity := []byte(Identity(l.registry))
	l.registry.SetHandler(MsgIdentify, func(data *[]byte) error {
		offset, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		count, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		if count > identifyChunk {
			count = identifyChunk
		}

		var chunk []byte
		if offset < uint32(len(identity)) {
			end := offset + count
			if end > uint32(len(identity)) {
				end = uint32(len(identity))
			}
			chunk = identity[offset:end]
		}
		return l.Send(MsgIdentifyResponse, func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, offset)
			protocol.EncodeVLQBytes(output, chunk)
		})
	})
}

func (l *Link) flush() error {
	l.frame.Reset()
	if err := protocol.EncodeFrame(&l.frame, l.seq, l.payload.Result()); err != nil {
		atomic.AddUint32(&l.failures, 1)
		return err
	}
	l.seq = (l.seq + 1) & protocol.FrameSeqMask
	if l.write == nil {
		return nil
	}
	return l.write(l.frame.Result())
}

// Errors returns the number of malformed frames and failed dispatches
func (l *Link) Errors() uint32 {
	return atomic.LoadUint32(&l.failures) + l.decoder.Errors
}
