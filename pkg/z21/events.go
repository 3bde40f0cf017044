package z21

import (
	"github.com/go-dcc/dccstack/pkg/dcc"
	"github.com/go-dcc/dccstack/pkg/detector"
)

// VehicleInfo reports a broadcast update to a locomotive's speed, direction
// and function state, as relayed by the permanent broadcast observer.
type VehicleInfo struct {
	Address   uint16
	Speed     uint8
	Direction dcc.Direction
	Functions uint32
}

// AccessoryInfo reports a broadcast update to a basic accessory decoder's
// output state.
type AccessoryInfo struct {
	Address uint16
	State   bool
}

// TurnoutInfo reports a broadcast update to a turnout's reported position.
type TurnoutInfo struct {
	Address  uint16
	Position uint8
}

// RailComInfo carries back-channel telemetry relayed from a decoder's
// RailCom cut-out.
type RailComInfo struct {
	Address uint16
	Speed   uint8
	QoS     uint8
}

// LibraryInfo carries the command station's hardware/firmware identity,
// queried on demand and cached by Client (spec §4.5).
type LibraryInfo struct {
	SerialNumber  uint32
	HardwareType  uint32
	FirmwareMajor uint8
	FirmwareMinor uint8
}

// EventSink receives high-level events the permanent broadcast observer
// decodes from raw frames. A nil field is simply not invoked; callers
// implement only the events they care about. This is the typed-callback
// counterpart of the teacher's FrameListener interface
// (pkg/can.FrameListener), applied to this client's own event taxonomy
// instead of raw CAN frames.
type EventSink struct {
	OnVehicleInfo   func(VehicleInfo)
	OnAccessoryInfo func(AccessoryInfo)
	OnTurnoutInfo   func(TurnoutInfo)
	OnDetectorInfo  func(detector.DetectorInfo)
	OnRailComInfo   func(RailComInfo)
	OnLibraryInfo   func(LibraryInfo)
}
