package lp2

import "github.com/go-dcc/dccstack/pkg/dcc"

// acknowledgeModeDefault is the acknowledge-pulse sensitivity profile the
// engine programs when entering Service mode.
const acknowledgeModeDefault byte = 0x00

// Reset builds the LP2 Reset request (distinct from dcc.Reset, which is the
// DCC track packet of the same name).
func Reset(seq uint8) Message {
	return NewRequest(seq, IdentifierReset, nil)
}

// SetPower builds a request to change the LokProgrammer's power mode.
func SetPower(seq uint8, mode Mode) Message {
	return NewRequest(seq, IdentifierSetPower, []byte{byte(mode)})
}

// SetSomeMagic1 builds the magic handshake byte the LokProgrammer expects
// after a power-mode change (0x01 after Enabled, 0x02 after Service, per
// spec §4.4). The name mirrors the reference's own lack of a better one.
func SetSomeMagic1(seq uint8, value byte) Message {
	return NewRequest(seq, IdentifierSetSomeMagic1, []byte{value})
}

// SetAcknowledgeMode builds the acknowledge-pulse sensitivity request sent
// when entering Service mode.
func SetAcknowledgeMode(seq uint8, mode byte) Message {
	return NewRequest(seq, IdentifierSetAcknowledgeMode, []byte{mode})
}

// DccRequest wraps a DCC track packet as an LP2 request payload.
func DccRequest(seq uint8, req dcc.Request) Message {
	return NewRequest(seq, IdentifierDccRequest, req.Bytes())
}
