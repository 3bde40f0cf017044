// Package lp2 implements the ESU LokProgrammer serial protocol (version 2):
// byte-stream framing, message decode/encode, connection lifecycle, power
// mode, and CV read/write orchestration (spec §4.3, §4.4).
package lp2

const (
	escapeByte = 0x80
	startByte  = 0x7F
	endByte    = 0x81
)

func needsEscape(b byte) bool {
	return b == startByte || b == escapeByte || b == endByte
}

// Encode wraps payload in the LP2 frame markers, escaping any payload byte
// that collides with a marker byte. The mask applied under escape is 0x00,
// i.e. the escaped byte is transmitted unchanged after the 0x80 lead-in
// (spec §4.3: "implementers must preserve the exact inverse transform used
// by the decoder").
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, startByte, startByte)
	for _, b := range payload {
		if needsEscape(b) {
			out = append(out, escapeByte, b)
		} else {
			out = append(out, b)
		}
	}
	out = append(out, endByte)
	return out
}

type readerState uint8

const (
	stateIdle readerState = iota
	stateStart1
	stateBody
	stateEscaped
)

// Reader is a streaming decoder for the LP2 frame format: feed it bytes as
// they arrive off the serial link, and it reports complete frame payloads
// via Feed's return value.
type Reader struct {
	state   readerState
	payload []byte
}

// NewReader returns a Reader ready to accept bytes from Idle.
func NewReader() *Reader {
	return &Reader{state: stateIdle}
}

// Feed consumes one byte and, if it completes a frame, returns the decoded
// payload and true. Any unexpected byte while scanning for the two start
// markers resets the reader to Idle (spec §4.3).
func (r *Reader) Feed(b byte) ([]byte, bool) {
	switch r.state {
	case stateIdle:
		if b == startByte {
			r.state = stateStart1
		}
		return nil, false

	case stateStart1:
		if b == startByte {
			r.state = stateBody
			r.payload = r.payload[:0]
		} else {
			r.state = stateIdle
		}
		return nil, false

	case stateBody:
		switch b {
		case escapeByte:
			r.state = stateEscaped
		case endByte:
			r.state = stateIdle
			frame := make([]byte, len(r.payload))
			copy(frame, r.payload)
			return frame, true
		default:
			r.payload = append(r.payload, b)
		}
		return nil, false

	case stateEscaped:
		r.payload = append(r.payload, b)
		r.state = stateBody
		return nil, false

	default:
		r.state = stateIdle
		return nil, false
	}
}

// Decode is a convenience wrapper around Reader for decoding a single
// complete, concatenated-or-not byte stream into its frame payloads.
func Decode(stream []byte) [][]byte {
	r := NewReader()
	var frames [][]byte
	for _, b := range stream {
		if frame, ok := r.Feed(b); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}
