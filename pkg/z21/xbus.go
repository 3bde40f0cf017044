package z21

import "errors"

// XBus opcodes used by CV programming and status queries (spec §4.5, §6).
const (
	xbusOpCVRead          byte = 0x23
	xbusSubCVRead         byte = 0x11
	xbusOpCVWrite         byte = 0x24
	xbusSubCVWrite        byte = 0x12
	xbusOpCVPomWrite      byte = 0xE6
	xbusSubCVPomWriteByte byte = 0x30
	xbusPomReadMask       byte = 0xE4
	xbusPomWriteMask      byte = 0xEC
	xbusOpConfigResult    byte = 0x64
	xbusSubConfigResult   byte = 0x14
	xbusOpConfigError     byte = 0x61
	xbusSubShortCircuit   byte = 0x12
	xbusSubValueRejected  byte = 0x13

	xbusOpSetTrackPower  byte = 0x21
	xbusSubTrackPowerOff byte = 0x80
	xbusSubTrackPowerOn  byte = 0x81

	// xbusOpEmergencyStop is the "request emergency stop" XBus opcode
	// (z21client.cpp's requestEmergencyStop: request bytes `06 00 40 00 80
	// 80`, i.e. a single opcode byte with no sub-opcode).
	xbusOpEmergencyStop byte = 0x80

	// xbusOpTurnoutInfo/xbusOpAccessoryInfo are z21client.h's
	// XBusMessageId::TurnoutInfo/AccessoryInfo broadcast opcodes.
	xbusOpTurnoutInfo   byte = 0x43
	xbusOpAccessoryInfo byte = 0x44

	// xbusOpLibraryInfoHi/Lo are the two bytes of z21client.h's
	// XBusMessageId::LibraryInfo, 0xeaf1 (wider than a plain opcode/sub-opcode
	// pair since it doubles as a vendor-library-specific message family).
	xbusOpLibraryInfoHi byte = 0xEA
	xbusOpLibraryInfoLo byte = 0xF1
)

var ErrXBusChecksum = errors.New("z21: xbus checksum mismatch")

// xorRange XORs every byte of b together (spec §6: "checksum is the XOR of
// bytes from offset 4 through offset len-2" of the whole frame — relative
// to the XBus payload, which starts at frame payload offset 0, that is
// bytes[0:len(payload)-1]).
func xorRange(b []byte) byte {
	var x byte
	for _, v := range b {
		x ^= v
	}
	return x
}

// xbusChecksum computes the checksum byte for an XBus payload body (opcode
// plus data, excluding the trailing checksum slot).
func xbusChecksum(body []byte) byte {
	return xorRange(body)
}

// encodeXBus appends the XOR checksum to an XBus payload body and returns
// the finished LanXBusMessage payload.
func encodeXBus(body []byte) []byte {
	out := make([]byte, len(body)+1)
	copy(out, body)
	out[len(body)] = xbusChecksum(body)
	return out
}

// decodeXBus validates and strips the trailing checksum byte, returning the
// opcode+data body.
func decodeXBus(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, ErrXBusChecksum
	}
	body := payload[:len(payload)-1]
	want := payload[len(payload)-1]
	if xbusChecksum(body) != want {
		return nil, ErrXBusChecksum
	}
	return body, nil
}

// cvReadDirectRequest builds the XBus "Read CV" direct-mode request body.
// Test vector (spec §8 scenario 5): cv=1 → `23 11 00 00 32`.
func cvReadDirectRequest(cv uint16) []byte {
	idx := cv - 1
	body := []byte{xbusOpCVRead, xbusSubCVRead, byte(idx >> 8), byte(idx)}
	return encodeXBus(body)
}

// cvWriteDirectRequest builds the XBus "Write CV" direct-mode request body.
func cvWriteDirectRequest(cv uint16, value byte) []byte {
	idx := cv - 1
	body := []byte{xbusOpCVWrite, xbusSubCVWrite, byte(idx >> 8), byte(idx), value}
	return encodeXBus(body)
}

// cvPomWriteByteRequest builds the XBus POM "write byte" request body for a
// vehicle running on the main track. Layout grounded on z21client.cpp's
// writeVariable POM branch: opcode, sub-opcode, address, then a mask word
// combining the zero-based CV index with 0xec00, then the value byte.
func cvPomWriteByteRequest(vehicleAddr uint16, cv uint16, value byte) []byte {
	idx := cv - 1
	body := []byte{
		xbusOpCVPomWrite, xbusSubCVPomWriteByte,
		byte(vehicleAddr >> 8), byte(vehicleAddr),
		xbusPomWriteMask | byte(idx>>8&0x03), byte(idx),
		value,
	}
	return encodeXBus(body)
}

// cvPomReadRequest builds the XBus POM "read CV" request body for a vehicle
// running on the main track: the same shape as cvPomWriteByteRequest, but
// with the 0xe400 mask instead of 0xec00 and a zero trailing byte in place
// of a value (z21client.cpp's readVariable POM branch).
func cvPomReadRequest(vehicleAddr uint16, cv uint16) []byte {
	idx := cv - 1
	body := []byte{
		xbusOpCVPomWrite, xbusSubCVPomWriteByte,
		byte(vehicleAddr >> 8), byte(vehicleAddr),
		xbusPomReadMask | byte(idx>>8&0x03), byte(idx),
		0x00,
	}
	return encodeXBus(body)
}

// emergencyStopRequest builds the XBus "request emergency stop" body
// (z21client.cpp: `06 00 40 00 80 80`, a single opcode byte with no
// sub-opcode or data).
func emergencyStopRequest() []byte {
	return encodeXBus([]byte{xbusOpEmergencyStop})
}

// configResult, if body decodes as a ConfigResult frame, returns the
// one-based CV number (the zero-based wire index plus one) and the value it
// carries.
func configResult(body []byte) (cv uint16, value byte, ok bool) {
	if len(body) < 4 || body[0] != xbusOpConfigResult || body[1] != xbusSubConfigResult {
		return 0, 0, false
	}
	idx := uint16(body[2])<<8 | uint16(body[3])
	if len(body) < 5 {
		return 0, 0, false
	}
	return idx + 1, body[4], true
}

func isConfigErrorShortCircuit(body []byte) bool {
	return len(body) >= 2 && body[0] == xbusOpConfigError && body[1] == xbusSubShortCircuit
}

func isConfigErrorValueRejected(body []byte) bool {
	return len(body) >= 2 && body[0] == xbusOpConfigError && body[1] == xbusSubValueRejected
}
