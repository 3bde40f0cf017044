package dcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReset(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, Reset().Bytes())
}

func TestSetSpeed28(t *testing.T) {
	addr, err := NewVehicleAddress(3)
	require.NoError(t, err)
	req, err := SetSpeed28(addr, 16, Forward)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x68, 0x6B}, req.Bytes())

	addr2, err := NewVehicleAddress(830)
	require.NoError(t, err)
	req2, err := SetSpeed28(addr2, 17, Reverse)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xC3, 0x3E, 0x58, 0xA5}, req2.Bytes())
}

func TestVerifyBit(t *testing.T) {
	req, err := VerifyBit(29, true, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x78, 0x1C, 0xED, 0x89}, req.Bytes())
}

func TestWriteByte(t *testing.T) {
	req, err := WriteByte(29, 48)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7C, 0x1C, 0x30, 0x50}, req.Bytes())

	req2, err := WriteByte(1021, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F, 0xFC, 0x03, 0x80}, req2.Bytes())
}

// For all valid requests produced by this package, the XOR of every byte
// (including the checksum) must be zero (spec §8).
func TestChecksumInvariant(t *testing.T) {
	addr, _ := NewVehicleAddress(3)
	extAddr, _ := NewVehicleAddress(830)
	reqs := []Request{
		Reset(),
		mustReq(SetSpeed14(addr, 10, true, Forward)),
		mustReq(SetSpeed28(addr, 16, Forward)),
		mustReq(SetSpeed28(extAddr, 17, Reverse)),
		mustReq(SetSpeed126(addr, 64, Reverse)),
		FunctionGroup1(addr, true, false, true, false, true),
		FunctionGroup2(addr, true, true, false, false),
		FunctionGroup3(addr, false, true, false, true),
		FunctionGroupExtended1(addr, []bool{true, false, true, false, false, false, false, true}),
		mustReq(VerifyBit(29, true, 5)),
		mustReq(VerifyBit(1, false, 0)),
		mustReq(WriteByte(29, 48)),
		mustReq(WriteByte(1021, 3)),
		mustReq(VerifyByte(100, 200)),
	}
	for _, r := range reqs {
		var x byte
		for _, b := range r.Bytes() {
			x ^= b
		}
		assert.Equalf(t, byte(0), x, "checksum invariant violated for % x", r.Bytes())
		assert.GreaterOrEqual(t, r.Len(), 3)
	}
}

func mustReq(r Request, err error) Request {
	if err != nil {
		panic(err)
	}
	return r
}

func TestVehicleAddressRoundTrip(t *testing.T) {
	for _, addr := range []uint16{1, 3, 127, 128, 830, 10239} {
		va, err := NewVehicleAddress(addr)
		require.NoError(t, err)
		encoded := va.encode()
		decoded, consumed, err := DecodeVehicleAddress(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), consumed)
		assert.Equal(t, va, decoded)
	}
}

func TestVehicleAddressOutOfRange(t *testing.T) {
	_, err := NewVehicleAddress(0)
	assert.ErrorIs(t, err, ErrAddressOutOfRange)
	_, err = NewVehicleAddress(10240)
	assert.ErrorIs(t, err, ErrAddressOutOfRange)
}

func TestCVOutOfRange(t *testing.T) {
	_, err := WriteByte(0, 1)
	assert.ErrorIs(t, err, ErrCVOutOfRange)
	_, err = WriteByte(1025, 1)
	assert.ErrorIs(t, err, ErrCVOutOfRange)
}
