package z21

import "errors"

var ErrConnectTimeout = errors.New("z21: connect timeout")

// TrackPower is the command station's reported track-power state, driven
// entirely by broadcast frames rather than by anything the client itself
// requests (spec §4.5).
type TrackPower uint8

const (
	TrackPowerUnknown TrackPower = iota
	TrackPowerOn
	TrackPowerOff
	TrackPowerProgramming
	TrackPowerShortCircuit
)

func (p TrackPower) String() string {
	switch p {
	case TrackPowerOn:
		return "on"
	case TrackPowerOff:
		return "off"
	case TrackPowerProgramming:
		return "programming"
	case TrackPowerShortCircuit:
		return "short-circuit"
	default:
		return "unknown"
	}
}

// CentralState mirrors the status bits of LAN_SYSTEMSTATE_DATACHANGED's
// CentralState byte relevant to track power (spec §4.5, §12).
type CentralState struct {
	EmergencyStop   bool
	TrackVoltageOff bool
	ShortCircuit    bool
	ProgrammingMode bool
}

const (
	centralStateEmergencyStopBit   = 0x01
	centralStateTrackVoltageOffBit = 0x02
	centralStateShortCircuitBit    = 0x04
	centralStateProgrammingBit     = 0x20
)

func decodeCentralState(b byte) CentralState {
	return CentralState{
		EmergencyStop:   b&centralStateEmergencyStopBit != 0,
		TrackVoltageOff: b&centralStateTrackVoltageOffBit != 0,
		ShortCircuit:    b&centralStateShortCircuitBit != 0,
		ProgrammingMode: b&centralStateProgrammingBit != 0,
	}
}

func (s CentralState) trackPower() TrackPower {
	switch {
	case s.ShortCircuit:
		return TrackPowerShortCircuit
	case s.ProgrammingMode:
		return TrackPowerProgramming
	case s.TrackVoltageOff || s.EmergencyStop:
		return TrackPowerOff
	default:
		return TrackPowerOn
	}
}

// powerState tracks the last-known TrackPower and the value track power
// held immediately before an explicit programming operation began, so
// PowerPolicyAlwaysRestoreAfterProgramming knows what to restore to.
type powerState struct {
	current       TrackPower
	beforeProgram TrackPower
	programming   bool
}

func newPowerState() *powerState {
	return &powerState{current: TrackPowerUnknown}
}

func (p *powerState) update(s CentralState) TrackPower {
	next := s.trackPower()
	if next == TrackPowerProgramming && !p.programming {
		p.programming = true
		p.beforeProgram = p.current
	} else if next != TrackPowerProgramming {
		p.programming = false
	}
	p.current = next
	return next
}

// restoreTarget reports the TrackPower PowerPolicyAlwaysRestoreAfterProgramming
// should drive the command station back to once a programming operation
// completes.
func (p *powerState) restoreTarget() TrackPower {
	if p.beforeProgram == TrackPowerUnknown {
		return TrackPowerOn
	}
	return p.beforeProgram
}

// SetTrackPower asks the command station to turn track power on or off via
// the XBus "set track power" request (spec §4.5).
func (c *Client) SetTrackPower(on bool) error {
	var sub byte = xbusSubTrackPowerOff
	if on {
		sub = xbusSubTrackPowerOn
	}
	frame := Encode(LanXBusMessage, encodeXBus([]byte{xbusOpSetTrackPower, sub}))
	return c.sendFrame(frame)
}

// TrackPower returns the last broadcast-reported track power state.
func (c *Client) TrackPower() TrackPower {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.power.current
}
