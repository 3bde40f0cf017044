package detector

import "github.com/go-dcc/dccstack/pkg/dcc"

// occupiedBit and powerOnBit are the two flags packed into a CAN Occupancy
// frame's v1 field (spec §4.6; test vector in spec §8 scenario 6: v1=0x1100
// decodes to occupied + power on).
const (
	occupiedBit = 0x1000
	powerOnBit  = 0x0100

	// directionMask and addressMask unpack one vehicle slot (v1 or v2) of a
	// VehicleSetN frame: the top two bits are direction (0x8000 = Forward,
	// 0xc000 = Reverse, per z21client.cpp's CanDetectorInfo::direction), the
	// remaining 14 bits the vehicle address (spec §8 scenario 6: v1=0x8042
	// → addr 0x42, Forward).
	directionMask    = 0xC000
	directionForward = 0x8000
	addressMask      = 0x3FFF
)

// CanFrameKind discriminates the two CAN feedback frame shapes.
type CanFrameKind uint8

const (
	KindOccupancy CanFrameKind = iota
	KindVehicleSet
)

// CanFrame is one decoded CAN feedback-bus frame, keyed by
// (network, module, port) and carrying either occupancy or a slice of the
// vehicle-set sequence (spec §4.6).
type CanFrame struct {
	Network, Module, Port uint16
	Kind                  CanFrameKind
	// SetNumber is meaningful only when Kind == KindVehicleSet, 1..15.
	SetNumber uint8
	V1, V2    uint16
}

type portKey struct {
	network, module, port uint16
}

func keyOf(network, module, port uint16) portKey {
	return portKey{network, module, port}
}

type occupancyFrame struct {
	occupied bool
	power    PowerState
}

type vehicleSetFrame struct {
	setNumber uint8
	vehicles  []VehicleEntry
	isLast    bool
}

type detectorState struct {
	occupancy *occupancyFrame
	sets      []vehicleSetFrame
}

// Callback is invoked once per completeness transition, both for the
// specific (network, module, port) a caller registered interest in and for
// any wildcard callback registered via OnAny.
type Callback func(DetectorInfo)

// Aggregator owns the per-port CAN feedback state and the merge/completeness
// logic of spec §4.6. It is not safe for concurrent use from multiple
// goroutines, matching the single-threaded event-loop model of spec §5.
type Aggregator struct {
	states   map[portKey]*detectorState
	perPort  map[portKey][]Callback
	wildcard []Callback
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		states:  make(map[portKey]*detectorState),
		perPort: make(map[portKey][]Callback),
	}
}

// OnPort registers cb to fire on every completeness transition for the
// given (network, module, port).
func (a *Aggregator) OnPort(network, module, port uint16, cb Callback) {
	k := keyOf(network, module, port)
	a.perPort[k] = append(a.perPort[k], cb)
}

// OnAny registers cb to fire on every completeness transition regardless of
// address.
func (a *Aggregator) OnAny(cb Callback) {
	a.wildcard = append(a.wildcard, cb)
}

func decodeVehicleSlot(v uint16) VehicleEntry {
	dir := dcc.Reverse
	if v&directionMask == directionForward {
		dir = dcc.Forward
	}
	return VehicleEntry{Address: v & addressMask, Direction: dir}
}

// HandleCan feeds one CAN feedback frame into the aggregator, updating the
// stored state for its (network, module, port) and emitting a DetectorInfo
// if the update brings that port to completeness (spec §4.6).
func (a *Aggregator) HandleCan(f CanFrame) {
	k := keyOf(f.Network, f.Module, f.Port)
	st, ok := a.states[k]
	if !ok {
		st = &detectorState{}
		a.states[k] = st
	}

	switch f.Kind {
	case KindOccupancy:
		power := PowerUnknown
		if f.V1&powerOnBit != 0 {
			power = PowerOn
		} else {
			power = PowerOff
		}
		st.occupancy = &occupancyFrame{occupied: f.V1&occupiedBit != 0, power: power}

	case KindVehicleSet:
		var vehicles []VehicleEntry
		if f.V1 != 0 {
			vehicles = append(vehicles, decodeVehicleSlot(f.V1))
		}
		isLast := f.V2 == 0
		if f.V2 != 0 {
			vehicles = append(vehicles, decodeVehicleSlot(f.V2))
		}
		set := vehicleSetFrame{setNumber: f.SetNumber, vehicles: vehicles, isLast: isLast}
		if f.SetNumber == 1 {
			st.sets = []vehicleSetFrame{set}
		} else {
			st.sets = append(st.sets, set)
		}
	}

	if info, ok := completeness(f.Network, f.Module, f.Port, st); ok {
		a.emit(k, info)
	}
}

// completeness implements spec §4.6's check:
// occupancy.is_some() && last_set.is_last() && has_vehicles == (occupancy == Occupied).
func completeness(network, module, port uint16, st *detectorState) (DetectorInfo, bool) {
	if st.occupancy == nil || len(st.sets) == 0 {
		return DetectorInfo{}, false
	}
	last := st.sets[len(st.sets)-1]
	if !last.isLast {
		return DetectorInfo{}, false
	}
	var vehicles []VehicleEntry
	for _, s := range st.sets {
		vehicles = append(vehicles, s.vehicles...)
	}
	hasVehicles := len(vehicles) > 0
	if hasVehicles != st.occupancy.occupied {
		return DetectorInfo{}, false
	}
	return DetectorInfo{
		Address:  CanPort(network, module, port),
		Occupied: st.occupancy.occupied,
		Power:    st.occupancy.power,
		Vehicles: vehicles,
	}, true
}

func (a *Aggregator) emit(k portKey, info DetectorInfo) {
	for _, cb := range a.perPort[k] {
		cb(info)
	}
	for _, cb := range a.wildcard {
		cb(info)
	}
}

// Disconnect discards all stored detector state, per spec §3's lifecycle
// ("destroyed on disconnect").
func (a *Aggregator) Disconnect() {
	a.states = make(map[portKey]*detectorState)
}
