// Package dcc implements the on-the-wire DCC packet format shared by the
// LP2 and Z21 engines: address encoding, speed/function/CV instructions,
// and the XOR checksum (spec §4.1).
package dcc

import "errors"

var (
	ErrAddressOutOfRange = errors.New("dcc: address out of range")
	ErrCVOutOfRange      = errors.New("dcc: cv index out of range")
	ErrSpeedOutOfRange   = errors.New("dcc: speed code out of range")
	ErrBitPositionRange  = errors.New("dcc: bit position out of range")
)

// Request is an immutable, checksummed DCC packet: address bytes (if any),
// instruction bytes, and a trailing XOR checksum byte such that the XOR of
// every byte in the packet (including the checksum) is zero.
type Request struct {
	bytes []byte
}

// Bytes returns the wire representation, checksum included.
func (r Request) Bytes() []byte {
	out := make([]byte, len(r.bytes))
	copy(out, r.bytes)
	return out
}

func (r Request) Len() int { return len(r.bytes) }

func xorAll(bs []byte) byte {
	var x byte
	for _, b := range bs {
		x ^= b
	}
	return x
}

// newRequest appends the XOR checksum and returns the finished packet.
// Every builder in this package funnels through here so the checksum
// invariant (spec §3, §8) can never be forgotten.
func newRequest(body []byte) Request {
	checksum := xorAll(body)
	full := make([]byte, len(body)+1)
	copy(full, body)
	full[len(body)] = checksum
	return Request{bytes: full}
}

// Reset builds the NMRA digital decoder reset packet: address byte 0x00,
// instruction byte 0x00. Test vector: 00 00 00.
func Reset() Request {
	return newRequest([]byte{0x00, 0x00})
}

// Repeat returns n copies of a request's bytes, one slice per copy.
func Repeat(r Request, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = r.Bytes()
	}
	return out
}
