package detector

import (
	"testing"

	"github.com/go-dcc/dccstack/pkg/dcc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanMergeOccupancyThenVehicleSetEmitsOnce(t *testing.T) {
	a := NewAggregator()
	var got []DetectorInfo
	a.OnAny(func(info DetectorInfo) { got = append(got, info) })

	a.HandleCan(CanFrame{Network: 0x310B, Module: 1, Port: 2, Kind: KindOccupancy, V1: 0x1100})
	assert.Empty(t, got, "occupancy alone must not be complete")

	a.HandleCan(CanFrame{Network: 0x310B, Module: 1, Port: 2, Kind: KindVehicleSet, SetNumber: 1, V1: 0x8042, V2: 0})
	require.Len(t, got, 1)
	info := got[0]
	assert.True(t, info.Occupied)
	assert.Equal(t, PowerOn, info.Power)
	if assert.Len(t, info.Vehicles, 1) {
		assert.Equal(t, uint16(0x42), info.Vehicles[0].Address)
		assert.Equal(t, dcc.Forward, info.Vehicles[0].Direction)
	}
}

func TestCanMergeMultiSetAppends(t *testing.T) {
	a := NewAggregator()
	var got []DetectorInfo
	a.OnAny(func(info DetectorInfo) { got = append(got, info) })

	a.HandleCan(CanFrame{Network: 1, Module: 1, Port: 1, Kind: KindOccupancy, V1: occupiedBit | powerOnBit})
	a.HandleCan(CanFrame{Network: 1, Module: 1, Port: 1, Kind: KindVehicleSet, SetNumber: 1, V1: 0x8001, V2: 0x8002})
	assert.Empty(t, got, "not last set yet")
	a.HandleCan(CanFrame{Network: 1, Module: 1, Port: 1, Kind: KindVehicleSet, SetNumber: 2, V1: 0x8003, V2: 0})
	require.Len(t, got, 1)
	assert.Len(t, got[0].Vehicles, 3)
}

func TestCanMergeUnoccupiedWithNoVehiclesIsComplete(t *testing.T) {
	a := NewAggregator()
	var got []DetectorInfo
	a.OnAny(func(info DetectorInfo) { got = append(got, info) })

	a.HandleCan(CanFrame{Network: 1, Module: 1, Port: 1, Kind: KindOccupancy, V1: 0})
	a.HandleCan(CanFrame{Network: 1, Module: 1, Port: 1, Kind: KindVehicleSet, SetNumber: 1, V1: 0, V2: 0})
	require.Len(t, got, 1)
	assert.False(t, got[0].Occupied)
	assert.Empty(t, got[0].Vehicles)
}

func TestOnPortOnlyFiresForMatchingAddress(t *testing.T) {
	a := NewAggregator()
	var matched, wildcard int
	a.OnPort(1, 1, 1, func(DetectorInfo) { matched++ })
	a.OnAny(func(DetectorInfo) { wildcard++ })

	a.HandleCan(CanFrame{Network: 2, Module: 1, Port: 1, Kind: KindOccupancy, V1: 0})
	a.HandleCan(CanFrame{Network: 2, Module: 1, Port: 1, Kind: KindVehicleSet, SetNumber: 1, V1: 0, V2: 0})

	assert.Equal(t, 0, matched)
	assert.Equal(t, 1, wildcard)
}

func TestDisconnectClearsState(t *testing.T) {
	a := NewAggregator()
	a.HandleCan(CanFrame{Network: 1, Module: 1, Port: 1, Kind: KindOccupancy, V1: occupiedBit})
	a.Disconnect()
	assert.Empty(t, a.states)
}
