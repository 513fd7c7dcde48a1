// Package mcu is the host side of the drive's link: it reads telemetry and
// log lines, verifies the message dictionary and sends throttle commands.
package mcu

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sixstep/core"
	"sixstep/host/serial"
	"sixstep/protocol"
)

var (
	ErrNotConnected       = errors.New("not connected to MCU")
	ErrIdentifyTimeout    = errors.New("identify response timed out")
	ErrDictionaryMismatch = errors.New("MCU message dictionary does not match the host")
)

// identifyChunk is the number of dictionary bytes requested per exchange
const identifyChunk = 40

type identifyReply struct {
	offset uint32
	data   []byte
}

// MCU represents a connection to a drive
type MCU struct {
	port serial.Port
	link *core.Link

	// Link.Send is not safe for concurrent use
	sendMu sync.Mutex

	statuses chan core.Telemetry
	logs     chan string
	identify chan identifyReply

	identity string
	closed   atomic.Bool
	dropped  atomic.Uint32
	done     chan struct{}
	readErr  error
}

// NewMCU wraps an open port and starts reading from it
func NewMCU(port serial.Port) *MCU {
	m := &MCU{
		port:     port,
		statuses: make(chan core.Telemetry, 64),
		logs:     make(chan string, 64),
		identify: make(chan identifyReply, 1),
		done:     make(chan struct{}),
	}

	registry := core.NewLinkRegistry()
	registry.SetHandler(core.MsgStatus, m.handleStatus)
	registry.SetHandler(core.MsgLog, m.handleLog)
	registry.SetHandler(core.MsgIdentifyResponse, m.handleIdentify)
	m.link = core.NewLink(registry, func(frame []byte) error {
		_, err := port.Write(frame)
		return err
	})

	go m.readLoop()
	return m
}

// Connect opens a serial device and wraps it
func Connect(device string) (*MCU, error) {
	return ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects with a custom serial config
func ConnectWithConfig(cfg *serial.Config) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	// Drop telemetry queued before we connected
	port.Flush()
	return NewMCU(port), nil
}

// Close closes the port and waits for the reader to stop
func (m *MCU) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	err := m.port.Close()
	<-m.done
	return err
}

// Statuses delivers telemetry reports
func (m *MCU) Statuses() <-chan core.Telemetry {
	return m.statuses
}

// Logs delivers the MCU's log lines
func (m *MCU) Logs() <-chan string {
	return m.logs
}

// Done is closed when the reader stops
func (m *MCU) Done() <-chan struct{} {
	return m.done
}

// Err returns the error that stopped the reader, if any
func (m *MCU) Err() error {
	<-m.done
	return m.readErr
}

// Dropped returns the number of reports discarded because nobody read them
func (m *MCU) Dropped() uint32 {
	return m.dropped.Load()
}

// LinkErrors returns the number of bad frames and messages seen
func (m *MCU) LinkErrors() uint32 {
	return m.link.Errors()
}

// readLoop feeds the port to the link until the port is closed
func (m *MCU) readLoop() {
	defer close(m.done)

	buf := make([]byte, 256)
	for {
		n, err := m.port.Read(buf)
		if n > 0 {
			m.link.Receive(buf[:n])
		}
		if m.closed.Load() {
			return
		}
		if err != nil {
			// A serial read timeout shows up as EOF with no data
			if err == io.EOF {
				continue
			}
			m.readErr = err
			return
		}
	}
}

func (m *MCU) handleStatus(data *[]byte) error {
	t, err := core.DecodeStatus(data)
	if err != nil {
		return err
	}
	select {
	case m.statuses <- t:
	default:
		m.dropped.Add(1)
	}
	return nil
}

func (m *MCU) handleLog(data *[]byte) error {
	msg, err := core.DecodeLog(data)
	if err != nil {
		return err
	}
	select {
	case m.logs <- msg:
	default:
		m.dropped.Add(1)
	}
	return nil
}

func (m *MCU) handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	chunk, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	reply := identifyReply{offset: offset, data: append([]byte(nil), chunk...)}
	select {
	case m.identify <- reply:
	default:
		// A stale reply from an abandoned request
		m.dropped.Add(1)
	}
	return nil
}

func (m *MCU) send(id uint16, args func(output protocol.OutputBuffer)) error {
	if m.closed.Load() {
		return ErrNotConnected
	}
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	return m.link.Send(id, args)
}

// RetrieveIdentity reads the MCU's version line and message dictionary in
// chunks and checks it against the host's
func (m *MCU) RetrieveIdentity(timeout time.Duration) (string, error) {
	var identity strings.Builder
	offset := uint32(0)
	maxIterations := 1000 // Safety limit

	for i := 0; i < maxIterations; i++ {
		chunk, err := m.sendIdentify(offset, identifyChunk, timeout)
		if err != nil {
			return "", fmt.Errorf("failed to retrieve identify chunk at offset %d: %w", offset, err)
		}
		identity.Write(chunk)
		offset += uint32(len(chunk))

		// If we got less than requested, we're done
		if len(chunk) < identifyChunk {
			break
		}
	}

	m.identity = identity.String()
	if want := core.Identity(core.NewLinkRegistry()); m.identity != want {
		return m.identity, ErrDictionaryMismatch
	}
	return m.identity, nil
}

// Identity returns the last retrieved identify text
func (m *MCU) Identity() string {
	return m.identity
}

// Version returns the link version from the identify text
func (m *MCU) Version() string {
	line, _, _ := strings.Cut(m.identity, "\n")
	return strings.TrimPrefix(line, "version ")
}

// sendIdentify sends one identify request and waits for the matching reply
func (m *MCU) sendIdentify(offset uint32, count uint32, timeout time.Duration) ([]byte, error) {
	err := m.send(core.MsgIdentify, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, count)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	deadline := time.After(timeout)
	for {
		select {
		case reply := <-m.identify:
			if reply.offset != offset {
				// Reply to an earlier request
				continue
			}
			return reply.data, nil
		case <-m.done:
			return nil, ErrNotConnected
		case <-deadline:
			return nil, ErrIdentifyTimeout
		}
	}
}

// ThrottleUp raises the duty by one step
func (m *MCU) ThrottleUp() error {
	return m.send(core.MsgThrottleUp, nil)
}

// ThrottleDown lowers the duty by one step
func (m *MCU) ThrottleDown() error {
	return m.send(core.MsgThrottleDown, nil)
}

// Halt releases the bridge
func (m *MCU) Halt() error {
	return m.send(core.MsgHalt, nil)
}

// Restart halts and runs the startup ramp again
func (m *MCU) Restart() error {
	return m.send(core.MsgRestart, nil)
}
