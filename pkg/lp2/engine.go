package lp2

import (
	"io"
	"log/slog"

	"github.com/go-dcc/dccstack"
	log "github.com/sirupsen/logrus"
)

// ConnState is the engine's connection lifecycle state (spec §4.4).
type ConnState uint8

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateError
)

// ResponseFunc is invoked once per matched response, with the decoded
// message and nil, or a zero message and an error on transport failure.
type ResponseFunc func(Message, error)

type pendingEntry struct {
	request  Message
	callback ResponseFunc
}

// Engine owns one LP2 serial connection: framing, the sequence-keyed
// pending-request table, and the cached power mode (spec §3, §4.4).
type Engine struct {
	logger    *slog.Logger
	transport Transport
	reader    *Reader
	state     ConnState
	mode      Mode
	sequence  uint8
	pending   map[uint8]pendingEntry
}

// NewEngine constructs a disconnected Engine. logger defaults to
// slog.Default() when nil, mirroring the teacher's BusManager construction.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:  logger.With("service", "lp2"),
		reader:  NewReader(),
		state:   StateDisconnected,
		mode:    ModeDisabled,
		pending: make(map[uint8]pendingEntry),
	}
}

// Connect opens the serial transport and moves the engine to Connected.
// There is no LP2 handshake frame to await, unlike Z21's status query: the
// LokProgrammer is ready as soon as the port opens (spec §4.4).
func (e *Engine) Connect(portName string) error {
	e.state = StateConnecting
	t, err := OpenSerial(portName)
	if err != nil {
		e.state = StateError
		return err
	}
	e.transport = t
	e.state = StateConnected
	e.logger.Info("connected", "port", portName)
	return nil
}

// Disconnect closes the transport, drops the pending-request list silently
// (per spec §5's "the reference drops them silently"), and invalidates the
// cached power mode.
func (e *Engine) Disconnect() error {
	e.pending = make(map[uint8]pendingEntry)
	e.mode = ModeDisabled
	e.state = StateDisconnected
	if e.transport == nil {
		return nil
	}
	err := e.transport.Close()
	e.transport = nil
	return err
}

// Attach installs an already-open transport and marks the engine Connected,
// bypassing OpenSerial. Tests use this to substitute an in-memory pipe for
// the real serial port.
func (e *Engine) Attach(t Transport) {
	e.transport = t
	e.state = StateConnected
}

func (e *Engine) State() ConnState { return e.state }
func (e *Engine) Mode() Mode       { return e.mode }

// nextSequence returns the next rolling 8-bit sequence counter value.
func (e *Engine) nextSequence() uint8 {
	e.sequence++
	return e.sequence
}

// send frames and writes msg, registering cb in the pending table keyed by
// msg.Sequence. Per spec's invariant, the entry exists before any matching
// response can be consumed.
func (e *Engine) send(msg Message, cb ResponseFunc) error {
	if e.state != StateConnected {
		return dccstack.ErrNotConnected
	}
	if _, exists := e.pending[msg.Sequence]; exists {
		return dccstack.ErrAlreadyPending
	}
	e.pending[msg.Sequence] = pendingEntry{request: msg, callback: cb}
	frame := Encode(msg.Marshal())
	log.Debugf("[LP2][TX][seq=%d] id=%d % x", msg.Sequence, msg.Identifier, frame)
	_, err := e.transport.Write(frame)
	if err != nil {
		delete(e.pending, msg.Sequence)
	}
	return err
}

// Poll reads one batch of available bytes from the transport and
// dispatches any complete frames to their matching pending callback. Call
// this from the host's I/O-readiness loop (spec §5: readiness on the
// serial port is the only relevant suspension point besides timers).
func (e *Engine) Poll() error {
	buf := make([]byte, 256)
	n, err := e.transport.Read(buf)
	if n > 0 {
		e.feed(buf[:n])
	}
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (e *Engine) feed(b []byte) {
	for _, c := range b {
		frame, ok := e.reader.Feed(c)
		if !ok {
			continue
		}
		msg, err := Unmarshal(frame)
		if err != nil {
			e.logger.Warn("malformed frame discarded", "err", err)
			continue
		}
		e.dispatch(msg)
	}
}

func (e *Engine) dispatch(msg Message) {
	entry, ok := e.pending[msg.Sequence]
	if !ok {
		e.logger.Warn("orphan response discarded", "sequence", msg.Sequence, "identifier", msg.Identifier)
		return
	}
	delete(e.pending, msg.Sequence)
	if entry.callback != nil {
		entry.callback(msg, nil)
	}
}

// pendingCount reports the size of the pending-request table, used by CV
// write to decide whether it is safe to power off (spec §4.4 step 4).
func (e *Engine) pendingCount() int { return len(e.pending) }
