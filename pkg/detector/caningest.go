package detector

import (
	sockcan "github.com/brutella/can"
	"golang.org/x/sys/unix"
)

// CanBridge subscribes to a real CAN interface via brutella/can and decodes
// raw feedback-module frames into Aggregator.HandleCan calls, for command
// stations that relay CAN-bus feedback directly rather than tunneling it
// over Z21/LP2. Adapted from the teacher's SocketcanBus wrapper
// (cmd/canopen/driver.go, pkg/can/socketcan/socketcan.go): same
// brutella/can subscribe-and-decode shape, applied to this package's own
// CanFrame/Aggregator instead of CANopen's Bus/FrameListener pair.
type CanBridge struct {
	bus        *sockcan.Bus
	aggregator *Aggregator
	decoder    FrameDecoder
}

// NewCanBridge opens a SocketCAN interface (e.g. "can0") and wires it to
// aggregator.
func NewCanBridge(ifaceName string, aggregator *Aggregator) (*CanBridge, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(ifaceName)
	if err != nil {
		return nil, err
	}
	bridge := &CanBridge{bus: bus, aggregator: aggregator}
	bus.Subscribe(bridge)
	return bridge, nil
}

// Start begins receiving frames; it blocks, so callers typically run it in
// its own goroutine, mirroring the teacher's `go bus.ConnectAndPublish()`.
func (b *CanBridge) Start() error {
	return b.bus.ConnectAndPublish()
}

func (b *CanBridge) Stop() error {
	return b.bus.Disconnect()
}

// FrameDecoder maps a raw CAN frame's id/data/length to a CanFrame. The
// exact wire layout of feedback CAN IDs is command-station-specific, so
// this is exposed as an overridable function rather than a fixed bit
// layout.
type FrameDecoder func(id uint32, data [8]byte, length uint8) (CanFrame, bool)

// Handle implements brutella/can's Handle(Frame) interface (the same shape
// the teacher's SocketcanBus.Handle satisfies for sockcan.Bus.Subscribe).
// DefaultDecoder is used when no custom FrameDecoder has been installed via
// SetDecoder.
func (b *CanBridge) Handle(frame sockcan.Frame) {
	id := frame.ID & unix.CAN_SFF_MASK
	decode := b.decoder
	if decode == nil {
		decode = DefaultDecoder
	}
	if cf, ok := decode(id, frame.Data, frame.Length); ok {
		b.aggregator.HandleCan(cf)
	}
}

// SetDecoder installs a custom FrameDecoder, for command stations whose CAN
// feedback frame layout differs from DefaultDecoder's assumed layout.
func (b *CanBridge) SetDecoder(d FrameDecoder) { b.decoder = d }

// DefaultDecoder decodes an 8-byte feedback frame laid out as:
// byte0-1 = network (big-endian), byte2 = module, byte3 = port,
// byte4 = kind (0 = occupancy, else = vehicle-set number),
// byte5-6 = v1 (big-endian), byte7 unused. A non-zero kind byte yields a
// KindVehicleSet frame carrying only V1; V2 is left zero, so the aggregator
// treats every such frame as the last set. Frames that carry v2 need a
// command-station-specific FrameDecoder.
func DefaultDecoder(_ uint32, data [8]byte, length uint8) (CanFrame, bool) {
	if length < 7 {
		return CanFrame{}, false
	}
	network := uint16(data[0])<<8 | uint16(data[1])
	module := uint16(data[2])
	port := uint16(data[3])
	v1 := uint16(data[5])<<8 | uint16(data[6])
	if data[4] == 0 {
		return CanFrame{Network: network, Module: module, Port: port, Kind: KindOccupancy, V1: v1}, true
	}
	return CanFrame{Network: network, Module: module, Port: port, Kind: KindVehicleSet, SetNumber: data[4], V1: v1}, true
}
