package z21

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOneGetBroadcastFlags(t *testing.T) {
	input := []byte{0x08, 0x00, 0x51, 0x00, 0x00, 0x00, 0x01, 0x00}
	frame, n, err := DecodeOne(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.Equal(t, LanGetBroadcastFlags, frame.LanID)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x00}, frame.Payload)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0x23, 0x11, 0x00, 0x00, 0x32}
	encoded := Encode(LanXBusMessage, payload)
	frame, n, err := DecodeOne(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, LanXBusMessage, frame.LanID)
	assert.Equal(t, payload, frame.Payload)
}

func TestDecodeAllMultipleFrames(t *testing.T) {
	a := Encode(LanGetSerialNumber, nil)
	b := Encode(LanXBusMessage, []byte{0x21, 0x24, 0x05})
	datagram := append(append([]byte{}, a...), b...)

	frames := DecodeAll(datagram)
	require.Len(t, frames, 2)
	assert.Equal(t, LanGetSerialNumber, frames[0].LanID)
	assert.Equal(t, LanXBusMessage, frames[1].LanID)
	assert.Equal(t, []byte{0x21, 0x24, 0x05}, frames[1].Payload)
}

func TestDecodeOneBufferTooShort(t *testing.T) {
	_, _, err := DecodeOne([]byte{0x08, 0x00, 0x51})
	assert.ErrorIs(t, err, ErrBufferTooShort)

	_, _, err = DecodeOne([]byte{0x08, 0x00, 0x51, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrBufferTooShort)
}
