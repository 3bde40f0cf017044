package z21

import (
	"encoding/binary"
	"time"

	"github.com/go-dcc/dccstack"
)

// LockState mirrors z21client.h's LockState enum, reported by
// LAN_GET_LOCKSTATE (spec §4.5: "lock state... queried on demand and
// cached").
type LockState uint8

const (
	LockStateInvalid       LockState = iota
	LockStateNoLock                  // 0x00
	LockStateStartLocked             // 0x01
	LockStateStartUnlocked           // 0x02
)

const (
	xbusOpFirmwareVersionReq    byte = 0xF1
	xbusSubFirmwareVersionReq   byte = 0x0A
	xbusOpFirmwareVersionReply  byte = 0xF3
	xbusSubFirmwareVersionReply byte = 0x0A
)

// bcd decodes one packed-BCD byte (z21client.cpp represents firmware/
// hardware version digits this way).
func bcd(b byte) uint8 {
	return (b>>4)*10 + (b & 0x0F)
}

// RequestEmergencyStop asks the command station to assert an emergency stop
// on every decoder (spec §4.5 track-power command `request_emergency_stop`),
// grounded on z21client.cpp's requestEmergencyStop (request bytes
// `06 00 40 00 80 80`).
func (c *Client) RequestEmergencyStop() error {
	return c.sendFrame(Encode(LanXBusMessage, emergencyStopRequest()))
}

// lanQuery sends a bare LAN-level request (no XBus wrapper) and waits,
// bounded by Config.ProgrammingTimeout, for a reply carrying replyID,
// handing its payload to decode.
func (c *Client) lanQuery(reqID LanID, replyID LanID, decode func([]byte) error) error {
	frame := Encode(reqID, nil)
	done := make(chan error, 1)
	entry := c.addObserver(func(f Frame) bool {
		if f.LanID != replyID {
			return false
		}
		done <- decode(f.Payload)
		return true
	}, frame)

	if err := c.sendFrame(frame); err != nil {
		c.removeObserver(entry)
		return err
	}

	select {
	case err := <-done:
		return err
	case <-time.After(c.cfg.ProgrammingTimeout):
		c.removeObserver(entry)
		return dccstack.Timeout
	}
}

// xbusQuery sends an XBus request and waits, bounded by
// Config.ProgrammingTimeout, for a reply whose body starts with
// (matchOpcode, matchSub), handing the whole body to decode.
func (c *Client) xbusQuery(reqBody []byte, matchOpcode, matchSub byte, decode func([]byte) error) error {
	frame := Encode(LanXBusMessage, encodeXBus(reqBody))
	done := make(chan error, 1)
	entry := c.addObserver(func(f Frame) bool {
		if f.LanID != LanXBusMessage {
			return false
		}
		body, err := decodeXBus(f.Payload)
		if err != nil || len(body) < 2 || body[0] != matchOpcode || body[1] != matchSub {
			return false
		}
		done <- decode(body)
		return true
	}, frame)

	if err := c.sendFrame(frame); err != nil {
		c.removeObserver(entry)
		return err
	}

	select {
	case err := <-done:
		return err
	case <-time.After(c.cfg.ProgrammingTimeout):
		c.removeObserver(entry)
		return dccstack.Timeout
	}
}

// QueryLockState queries and caches the command station's lock state
// (z21client.cpp's queryLockState: request `04 00 18 00`, response
// LAN_GET_LOCKSTATE with the state in payload byte 0).
func (c *Client) QueryLockState() (LockState, error) {
	err := c.lanQuery(LanGetLockState, LanGetLockState, func(payload []byte) error {
		if len(payload) < 1 {
			return dccstack.RequestFailed
		}
		c.mu.Lock()
		if payload[0] <= 0x02 {
			c.lock = LockStateNoLock + LockState(payload[0])
		} else {
			c.lock = LockStateInvalid
		}
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		return LockStateInvalid, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lock, nil
}

// QuerySerialNumber queries and caches the command station's serial number
// (z21client.cpp's querySerialNumber: request `04 00 10 00`, response
// LAN_GET_SERIAL_NUMBER with a little-endian uint32 payload).
func (c *Client) QuerySerialNumber() (uint32, error) {
	var value uint32
	err := c.lanQuery(LanGetSerialNumber, LanGetSerialNumber, func(payload []byte) error {
		if len(payload) < 4 {
			return dccstack.RequestFailed
		}
		value = binary.LittleEndian.Uint32(payload)
		c.mu.Lock()
		c.library.SerialNumber = value
		c.mu.Unlock()
		return nil
	})
	return value, err
}

// QueryHardwareInfo queries and caches the command station's hardware type
// and firmware version (z21client.cpp's queryHardwareInfo: request
// `04 00 1A 00`, response LAN_GET_HWINFO with a little-endian uint32
// hardware type followed by BCD firmware minor/major bytes).
func (c *Client) QueryHardwareInfo() (LibraryInfo, error) {
	err := c.lanQuery(LanGetHardwareInfo, LanGetHardwareInfo, func(payload []byte) error {
		if len(payload) < 6 {
			return dccstack.RequestFailed
		}
		c.mu.Lock()
		c.library.HardwareType = binary.LittleEndian.Uint32(payload)
		c.library.FirmwareMinor = bcd(payload[4])
		c.library.FirmwareMajor = bcd(payload[5])
		info := c.library
		c.mu.Unlock()
		if c.sink.OnLibraryInfo != nil {
			c.sink.OnLibraryInfo(info)
		}
		return nil
	})
	c.mu.Lock()
	info := c.library
	c.mu.Unlock()
	return info, err
}

// QueryFirmwareVersion queries and caches the command station's XBus
// firmware version (z21client.cpp's queryFirmwareVersion: request
// `07 00 40 00 f1 0a fb`, response XBusMessageId::GetFirmwareVersionReply
// with BCD major/minor bytes at body offsets 2/3).
func (c *Client) QueryFirmwareVersion() (major, minor uint8, err error) {
	err = c.xbusQuery([]byte{xbusOpFirmwareVersionReq, xbusSubFirmwareVersionReq},
		xbusOpFirmwareVersionReply, xbusSubFirmwareVersionReply,
		func(body []byte) error {
			if len(body) < 4 {
				return dccstack.RequestFailed
			}
			major = bcd(body[2])
			minor = bcd(body[3])
			c.mu.Lock()
			c.library.FirmwareMajor = major
			c.library.FirmwareMinor = minor
			c.mu.Unlock()
			return nil
		})
	return major, minor, err
}
