package z21

import (
	"time"

	"github.com/go-dcc/dccstack"
)

// ReadVariableDirect reads one CV in direct/service mode (spec §4.5, §8
// scenario 5). The command station is expected to switch to programming
// track power on its own in response to the XBus request; this call blocks
// for at most Config.ProgrammingTimeout waiting for the ConfigResult or
// ConfigError XBus reply. Track power is re-enabled per Config.PowerPolicy
// on every outcome — success, ConfigError, or timeout — matching
// z21client.cpp's readVariable, which calls enableTrackPower()
// unconditionally on all three for direct-mode (address == 0) requests.
func (c *Client) ReadVariableDirect(cv uint16) (byte, error) {
	return c.programmingRoundTrip(cvReadDirectRequest(uint16(cv)), uint16(cv), true)
}

// ReadVariablePOM reads one CV on a vehicle running on the main track
// (programming-on-main). POM-mode requests never toggle track power
// (z21client.cpp's readVariable only calls enableTrackPower() when
// address == 0).
func (c *Client) ReadVariablePOM(vehicleAddr uint16, cv uint16) (byte, error) {
	return c.programmingRoundTrip(cvPomReadRequest(vehicleAddr, uint16(cv)), uint16(cv), false)
}

// ReadVariables reads a sequence of CVs one at a time in direct mode,
// invoking fn after each with its index in cvs and the read result,
// stopping at the first error. Grounded on z21client.cpp's readVariables,
// a simple recursive one-CV-at-a-time loop with no batching or concurrent
// reads.
func (c *Client) ReadVariables(cvs []uint16, fn func(i int, value byte, err error)) {
	if len(cvs) == 0 {
		return
	}
	value, err := c.ReadVariableDirect(cvs[0])
	fn(0, value, err)
	if err != nil {
		return
	}
	for i, cv := range cvs[1:] {
		value, err := c.ReadVariableDirect(cv)
		fn(i+1, value, err)
		if err != nil {
			return
		}
	}
}

// WriteVariableDirect writes one CV in direct/service mode, then issues the
// matching read as a verify step 100ms later. The write itself is sent
// without waiting for a reply, since the device gives no write
// acknowledgement; the verify read is a direct-mode round trip that
// restores track power on its outcome per Config.PowerPolicy. A read-back
// value different from value is reported as ValueRejected.
func (c *Client) WriteVariableDirect(cv uint16, value byte) error {
	if err := c.sendFrame(Encode(LanXBusMessage, cvWriteDirectRequest(uint16(cv), value))); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	got, err := c.ReadVariableDirect(cv)
	if err != nil {
		return err
	}
	if got != value {
		return dccstack.ValueRejected
	}
	return nil
}

// WriteVariablePOM writes one CV on a vehicle running on the main track
// (programming-on-main), then issues the matching POM read as a verify
// step, mirroring z21client.cpp's unified writeVariable (the device gives
// no direct write acknowledgement in either mode; spec §4.5's "100ms
// read-back" rule applies the same way to POM as to direct writes).
func (c *Client) WriteVariablePOM(vehicleAddr uint16, cv uint16, value byte) error {
	frame := Encode(LanXBusMessage, cvPomWriteByteRequest(vehicleAddr, uint16(cv), value))
	if err := c.sendFrame(frame); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	got, err := c.ReadVariablePOM(vehicleAddr, cv)
	if err != nil {
		return err
	}
	if got != value {
		return dccstack.ValueRejected
	}
	return nil
}

// programmingRoundTrip sends an already-encoded XBus programming request
// and waits (bounded by Config.ProgrammingTimeout) for its ConfigResult or
// ConfigError reply. direct selects whether this is a direct-mode
// (vehicle_address == 0) request, which per z21client.cpp's readVariable/
// writeVariable restores track power (via restorePowerAfterProgramming) on
// every outcome — success, ConfigError, or timeout; POM-mode requests
// (direct == false) never touch track power.
func (c *Client) programmingRoundTrip(xbusBody []byte, cv uint16, direct bool) (byte, error) {
	frame := Encode(LanXBusMessage, xbusBody)

	type result struct {
		value byte
		err   error
	}
	done := make(chan result, 1)

	entry := c.addObserver(func(f Frame) bool {
		if f.LanID != LanXBusMessage {
			return false
		}
		body, err := decodeXBus(f.Payload)
		if err != nil {
			return false
		}
		if isConfigErrorShortCircuit(body) {
			done <- result{err: dccstack.ShortCircuit}
			return true
		}
		if isConfigErrorValueRejected(body) {
			done <- result{err: dccstack.ValueRejected}
			return true
		}
		if idx, value, ok := configResult(body); ok && idx == cv {
			done <- result{value: value}
			return true
		}
		return false
	}, frame)

	if err := c.sendFrame(frame); err != nil {
		c.removeObserver(entry)
		return 0, err
	}

	select {
	case r := <-done:
		if direct {
			if perr := c.restorePowerAfterProgramming(); perr != nil && r.err == nil {
				r.err = perr
			}
		}
		return r.value, r.err
	case <-time.After(c.cfg.ProgrammingTimeout):
		// The observer was never consumed by dispatch, so it must be
		// removed here or retransmitSweep (client.go) keeps resending this
		// stale request forever and it can intercept a later round trip for
		// the same cv (client.go's dispatch matches in FIFO order).
		c.removeObserver(entry)
		if direct {
			c.restorePowerAfterProgramming()
		}
		return 0, dccstack.Timeout
	}
}

// restorePowerAfterProgramming applies Config.PowerPolicy once a
// programming operation finishes (spec §9 Open Question resolution).
func (c *Client) restorePowerAfterProgramming() error {
	c.mu.Lock()
	policy := c.cfg.PowerPolicy
	pendingCount := len(c.pending)
	target := c.power.restoreTarget()
	c.mu.Unlock()

	switch policy {
	case PowerPolicyAlwaysRestoreAfterProgramming:
		return c.SetTrackPower(target == TrackPowerOn)
	case PowerPolicyLeaveAsIs:
		if pendingCount <= 1 { // only the permanent broadcast observer remains
			return c.SetTrackPower(target == TrackPowerOn)
		}
		return nil
	default:
		return nil
	}
}
