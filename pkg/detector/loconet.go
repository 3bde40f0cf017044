package detector

// LoconetFrame is a single-frame LocoNet feedback report: one module/SIC
// address reporting directly, with no multi-frame assembly (spec §4.6:
// "LocoNet and R-Bus frames are simpler (single-frame) and emit directly").
type LoconetFrame struct {
	Module   uint16
	Occupied bool
}

// EmitLoconet builds a DetectorInfo straight from a single LocoNet frame
// and delivers it through the same callback-dispatch code path the CAN
// merge logic uses, instead of a parallel implementation.
func (a *Aggregator) EmitLoconet(f LoconetFrame) {
	info := DetectorInfo{
		Address:  LoconetModule(f.Module),
		Occupied: f.Occupied,
		Power:    PowerUnknown,
	}
	a.emit(keyOf(0, f.Module, 0), info)
}
