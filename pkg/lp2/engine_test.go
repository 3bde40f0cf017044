package lp2

import (
	"net"
	"testing"
	"time"

	"github.com/go-dcc/dccstack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice drains frames sent by the engine and replies according to
// respond, simulating the LokProgrammer side of the link over an in-memory
// net.Pipe (standing in for the serial port in tests).
type fakeDevice struct {
	conn    net.Conn
	reader  *Reader
	respond func(Message) Message
}

func newFakeDevice(conn net.Conn, respond func(Message) Message) *fakeDevice {
	return &fakeDevice{conn: conn, reader: NewReader(), respond: respond}
}

func (d *fakeDevice) run() {
	buf := make([]byte, 64)
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			frame, ok := d.reader.Feed(b)
			if !ok {
				continue
			}
			msg, err := Unmarshal(frame)
			if err != nil {
				continue
			}
			resp := d.respond(msg)
			d.conn.Write(Encode(resp.Marshal()))
		}
	}
}

func successResponse(req Message) Message {
	return Message{Type: MessageResponse, Sequence: req.Sequence, Identifier: req.Identifier, Payload: []byte{byte(StatusSuccess)}}
}

func newTestEngine(t *testing.T, respond func(Message) Message) (*Engine, net.Conn) {
	t.Helper()
	client, device := net.Pipe()
	e := NewEngine(nil)
	e.Attach(client)
	d := newFakeDevice(device, respond)
	go d.run()
	return e, device
}

func pollUntil(t *testing.T, e *Engine, done *bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !*done && time.Now().Before(deadline) {
		e.Poll()
	}
	require.True(t, *done, "callback never fired")
}

func TestSetModeShortCircuitsWhenAlreadyTarget(t *testing.T) {
	e, _ := newTestEngine(t, successResponse)
	e.mode = ModeService
	called := false
	e.SetMode(ModeService, func(err error) {
		called = true
		assert.NoError(t, err)
	})
	assert.True(t, called)
}

func TestSetModeEnabledSequence(t *testing.T) {
	e, device := newTestEngine(t, successResponse)
	defer device.Close()

	done := false
	e.SetMode(ModeEnabled, func(err error) {
		done = true
		assert.NoError(t, err)
	})
	pollUntil(t, e, &done)
	assert.Equal(t, ModeEnabled, e.Mode())
}

func TestWriteVariableSuccess(t *testing.T) {
	e, device := newTestEngine(t, func(req Message) Message {
		if req.Identifier != IdentifierDccRequest {
			return successResponse(req)
		}
		return Message{
			Type:       MessageResponse,
			Sequence:   req.Sequence,
			Identifier: req.Identifier,
			Payload:    []byte{byte(StatusSuccess), byte(AcknowledgePositive)},
		}
	})
	defer device.Close()

	var gotCode dccstack.ErrorCode
	done := false
	e.WriteVariable(29, 48, func(code dccstack.ErrorCode) {
		gotCode = code
		done = true
	})
	pollUntil(t, e, &done)
	assert.Equal(t, dccstack.NoError, gotCode)
}

func TestWriteVariableSendsPowerOff(t *testing.T) {
	var setPowerPayloads [][]byte
	e, device := newTestEngine(t, func(req Message) Message {
		if req.Identifier == IdentifierSetPower {
			setPowerPayloads = append(setPowerPayloads, req.Payload)
		}
		if req.Identifier != IdentifierDccRequest {
			return successResponse(req)
		}
		return Message{
			Type:       MessageResponse,
			Sequence:   req.Sequence,
			Identifier: req.Identifier,
			Payload:    []byte{byte(StatusSuccess), byte(AcknowledgePositive)},
		}
	})
	defer device.Close()

	done := false
	e.WriteVariable(29, 48, func(code dccstack.ErrorCode) {
		done = true
	})
	pollUntil(t, e, &done)

	require.NotEmpty(t, setPowerPayloads, "WriteVariable must send SetPower to actually power off the track, not just flip the cached Mode")
	last := setPowerPayloads[len(setPowerPayloads)-1]
	require.Len(t, last, 1)
	assert.Equal(t, byte(ModeDisabled), last[0])
	assert.Equal(t, ModeDisabled, e.Mode())
}

func TestOrphanResponseDiscarded(t *testing.T) {
	e, device := newTestEngine(t, successResponse)
	defer device.Close()

	e.feed(Encode(Message{Type: MessageResponse, Sequence: 250, Identifier: IdentifierReset, Payload: []byte{0}}.Marshal()))
	assert.Equal(t, 0, e.pendingCount())
}
