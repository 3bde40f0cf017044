// Package z21 implements the Roco Z21 command-station UDP protocol: the
// length-prefixed datagram framer, the XBus sub-protocol overlay, the
// client's pending-request/observer chain, track-power state machine, and
// CV read/write orchestration (spec §4.5).
package z21

import (
	"encoding/binary"
	"errors"
)

// LanID identifies a Z21 LAN datagram's payload kind (the "lan_id" field of
// spec §3/§6).
type LanID uint16

const (
	LanGetSerialNumber            LanID = 0x0010
	LanGetLockState               LanID = 0x0018
	LanGetHardwareInfo            LanID = 0x001A
	LanLogoff                     LanID = 0x0030
	LanXBusMessage                LanID = 0x0040
	LanSetBroadcastFlags          LanID = 0x0050
	LanGetBroadcastFlags          LanID = 0x0051
	LanRMBusDataChanged           LanID = 0x0080
	LanSystemStateData            LanID = 0x0084
	LanRailComDataChanged         LanID = 0x0088
	LanLoconetDetectorDataChanged LanID = 0x00A4
	LanCanDetectorDataChanged     LanID = 0x00C4
)

var (
	ErrFrameTooShort    = errors.New("z21: frame shorter than 4 bytes")
	ErrDeclaredLenShort = errors.New("z21: declared frame length shorter than header")
	ErrBufferTooShort   = errors.New("z21: buffer does not contain a complete frame")
)

// Frame is one decoded Z21 LAN frame: `length_le16, lan_id_le16, payload…`.
type Frame struct {
	LanID   LanID
	Payload []byte
}

// headerLen is the length+lan_id prefix every frame carries (spec §4.5:
// "frames shorter than 4 bytes are invalid").
const headerLen = 4

// Encode produces the wire bytes for a single frame: the two-byte length
// (including itself), the two-byte little-endian lan_id, then payload.
func Encode(lanID LanID, payload []byte) []byte {
	length := headerLen + len(payload)
	out := make([]byte, length)
	binary.LittleEndian.PutUint16(out[0:2], uint16(length))
	binary.LittleEndian.PutUint16(out[2:4], uint16(lanID))
	copy(out[4:], payload)
	return out
}

// DecodeOne decodes the single leading frame from buf, returning the frame,
// the number of bytes consumed, and an error. If buf holds fewer bytes than
// its declared length, it returns (Frame{}, 0, ErrBufferTooShort) so the
// caller can leave the prefix buffered until more bytes arrive (spec §8
// boundary behavior).
func DecodeOne(buf []byte) (Frame, int, error) {
	if len(buf) < headerLen {
		return Frame{}, 0, ErrBufferTooShort
	}
	length := int(binary.LittleEndian.Uint16(buf[0:2]))
	if length < headerLen {
		return Frame{}, 0, ErrDeclaredLenShort
	}
	if len(buf) < length {
		return Frame{}, 0, ErrBufferTooShort
	}
	lanID := LanID(binary.LittleEndian.Uint16(buf[2:4]))
	payload := append([]byte(nil), buf[4:length]...)
	return Frame{LanID: lanID, Payload: payload}, length, nil
}

// DecodeAll decodes every complete frame from a datagram (spec §4.5: "one
// datagram containing one or more frames"). Any trailing incomplete prefix
// is dropped — a full UDP datagram is always delivered whole, so a short
// trailing prefix indicates a malformed datagram rather than a buffering
// boundary (that case belongs to the streamed receive buffer, handled by
// Client.HandleDatagram).
func DecodeAll(datagram []byte) []Frame {
	var frames []Frame
	for len(datagram) > 0 {
		frame, n, err := DecodeOne(datagram)
		if err != nil {
			return frames
		}
		frames = append(frames, frame)
		datagram = datagram[n:]
	}
	return frames
}
