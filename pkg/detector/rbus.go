package detector

// RBusFrame is a single-frame R-Bus feedback report (spec §4.6).
type RBusFrame struct {
	Module   uint16
	Port     uint16
	Occupied bool
}

// EmitRBus builds a DetectorInfo straight from a single R-Bus frame,
// reusing the CAN path's own emission code (spec §12 supplement).
func (a *Aggregator) EmitRBus(f RBusFrame) {
	info := DetectorInfo{
		Address:  RBusPort(f.Module, f.Port),
		Occupied: f.Occupied,
		Power:    PowerUnknown,
	}
	a.emit(keyOf(0, f.Module, f.Port), info)
}
