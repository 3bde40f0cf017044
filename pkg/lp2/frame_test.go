package lp2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x7F, 0x80, 0x81}
	encoded := Encode(payload)
	assert.Equal(t, []byte{0x7F, 0x7F, 0x01, 0x02, 0x03, 0x80, 0x7F, 0x80, 0x80, 0x80, 0x81, 0x81}, encoded)

	frames := Decode(encoded)
	if assert.Len(t, frames, 1) {
		assert.Equal(t, payload, frames[0])
	}
}

func TestDecodeConcatenatedFrames(t *testing.T) {
	a := Encode([]byte{0x01, 0x02})
	b := Encode([]byte{0x10, 0x20, 0x30})
	stream := append(append([]byte{}, a...), b...)

	frames := Decode(stream)
	if assert.Len(t, frames, 2) {
		assert.Equal(t, []byte{0x01, 0x02}, frames[0])
		assert.Equal(t, []byte{0x10, 0x20, 0x30}, frames[1])
	}
}

func TestReaderRestartsOnBadStart(t *testing.T) {
	r := NewReader()
	_, ok := r.Feed(0x7F)
	assert.False(t, ok)
	// Unexpected byte instead of second start marker restarts the scan.
	_, ok = r.Feed(0x01)
	assert.False(t, ok)
	assert.Equal(t, stateIdle, r.state)

	// A proper start now succeeds.
	_, ok = r.Feed(0x7F)
	assert.False(t, ok)
	_, ok = r.Feed(0x7F)
	assert.False(t, ok)
	assert.Equal(t, stateBody, r.state)
}

func TestDecodeEmptyPayload(t *testing.T) {
	encoded := Encode(nil)
	frames := Decode(encoded)
	if assert.Len(t, frames, 1) {
		assert.Empty(t, frames[0])
	}
}
