// Package detector implements the feedback-detector aggregation layer:
// CAN network/module/port state merging with completeness detection, and
// direct single-frame emission for LocoNet and R-Bus (spec §4.6).
package detector

import "github.com/go-dcc/dccstack/pkg/dcc"

// AddressKind discriminates the tagged union of detector address forms
// (spec §3).
type AddressKind uint8

const (
	AddressCanNetwork AddressKind = iota
	AddressCanModule
	AddressCanPort
	AddressRBusGroup
	AddressRBusModule
	AddressRBusPort
	AddressLoconetSIC
	AddressLoconetModule
	AddressLissyModule
)

// DetectorAddress is a tagged union over the nine feedback-bus address
// forms spec §3 names. Only the fields relevant to Kind are meaningful.
type DetectorAddress struct {
	Kind    AddressKind
	Network uint16
	Module  uint16
	Port    uint16
}

func CanPort(network, module, port uint16) DetectorAddress {
	return DetectorAddress{Kind: AddressCanPort, Network: network, Module: module, Port: port}
}

func RBusPort(module, port uint16) DetectorAddress {
	return DetectorAddress{Kind: AddressRBusPort, Module: module, Port: port}
}

func LoconetModule(module uint16) DetectorAddress {
	return DetectorAddress{Kind: AddressLoconetModule, Module: module}
}

func LissyModule(module uint16) DetectorAddress {
	return DetectorAddress{Kind: AddressLissyModule, Module: module}
}

// PowerState is the occupancy power-supply status carried alongside
// occupancy in a CAN Occupancy frame.
type PowerState uint8

const (
	PowerUnknown PowerState = iota
	PowerOn
	PowerOff
)

// VehicleEntry pairs a reported vehicle address with its running direction,
// as decoded from a VehicleSetN frame.
type VehicleEntry struct {
	Address   uint16
	Direction dcc.Direction
}

// DetectorInfo is the consolidated record emitted once a detector's state
// reaches completeness (spec §4.6). This is the "external collaborator"
// record spec §6 names (`address, occupancy, power_state, vehicles,
// directions`); Vehicles carries the (address, direction) pairs together
// rather than as two parallel slices, which is equivalent but avoids an
// index-alignment footgun.
type DetectorInfo struct {
	Address  DetectorAddress
	Occupied bool
	Power    PowerState
	Vehicles []VehicleEntry
}
