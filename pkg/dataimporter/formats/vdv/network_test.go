package vdv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopRef(number int64) PlaceRef {
	return PlaceRef{Kind: PlaceKindStop, Number: number}
}

// baseNetworkRecords returns two stops and one two-stop variant of line 10.
func baseNetworkRecords() *RecordSet {
	return &RecordSet{
		Versions: []VersionValidity{{ValidFrom: date(2024, 1, 1), Version: 1}},
		Places: []Place{
			{Version: 1, Kind: PlaceKindStop, Number: 1, Name: "Alpha", ShortName: "ALP", Latitude: 52.52, Longitude: 13.41, HasLocation: true},
			{Version: 1, Kind: PlaceKindStop, Number: 2, Name: "Beta", ShortName: "BET"},
		},
		Segments: []SegmentRecord{
			{Version: 1, Region: 1, From: stopRef(1), To: stopRef(2), Length: 800},
		},
		VariantPoints: []VariantPointRecord{
			{Version: 1, Sequence: 1, Line: 10, Variant: "A", Place: stopRef(1)},
			{Version: 1, Sequence: 2, Line: 10, Variant: "A", Place: stopRef(2)},
		},
		LineVariants: []LineVariantRecord{
			{Version: 1, Region: 1, Line: 10, Variant: "A", ShortName: "M10", Name: "Alpha - Beta"},
		},
	}
}

func buildTestNetwork(t *testing.T, records *RecordSet) *Network {
	t.Helper()

	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	network, err := BuildNetwork(resolver, DefaultDegeneratePatterns())
	require.NoError(t, err)
	return network
}

func TestBuildNetworkSimpleVariant(t *testing.T) {
	network := buildTestNetwork(t, baseNetworkRecords())

	require.Len(t, network.Routes(), 1)
	route := network.Routes()[0]

	assert.Equal(t, "Alpha - Beta", route.Name)
	assert.Equal(t, 800.0, route.Distance)
	require.Len(t, route.Stations, 2)
	assert.Equal(t, "Alpha", route.Stations[0].Station.Name)
	assert.Equal(t, 0.0, route.Stations[0].ElapsedDistance)
	assert.Equal(t, "Beta", route.Stations[1].Station.Name)
	assert.Equal(t, 800.0, route.Stations[1].ElapsedDistance)
	assert.Same(t, route.Stations[0].Station, route.DepartureStation)
	assert.Same(t, route.Stations[1].Station, route.ArrivalStation)

	require.Len(t, network.Lines(), 1)
	assert.Equal(t, "M10", network.Lines()[0].Name)
}

func TestBuildNetworkAccumulatesDistanceAcrossWaypoints(t *testing.T) {
	records := baseNetworkRecords()
	waypoint := PlaceRef{Kind: PlaceKindWaypoint, Number: 9}
	records.Places = append(records.Places,
		Place{Version: 1, Kind: PlaceKindWaypoint, Number: 9, Name: "Curve"})
	records.Segments = []SegmentRecord{
		{Version: 1, Region: 1, From: stopRef(1), To: waypoint, Length: 300},
		{Version: 1, Region: 1, From: waypoint, To: stopRef(2), Length: 500},
	}
	records.VariantPoints = []VariantPointRecord{
		{Version: 1, Sequence: 1, Line: 10, Variant: "A", Place: stopRef(1)},
		{Version: 1, Sequence: 2, Line: 10, Variant: "A", Place: waypoint},
		{Version: 1, Sequence: 3, Line: 10, Variant: "A", Place: stopRef(2)},
	}

	network := buildTestNetwork(t, records)

	require.Len(t, network.Routes(), 1)
	route := network.Routes()[0]
	require.Len(t, route.Stations, 2)
	assert.Equal(t, 800.0, route.Stations[1].ElapsedDistance)
}

func TestBuildNetworkDepotMapsByShortNamePrefix(t *testing.T) {
	records := baseNetworkRecords()
	depot := PlaceRef{Kind: PlaceKindDepot, Number: 50}
	records.Places = append(records.Places,
		Place{Version: 1, Kind: PlaceKindDepot, Number: 50, Name: "Depot Alpha", ShortName: "ALP0"})
	records.Segments = append(records.Segments,
		SegmentRecord{Version: 1, Region: 1, From: depot, To: stopRef(1), Length: 200})
	records.VariantPoints = []VariantPointRecord{
		{Version: 1, Sequence: 1, Line: 10, Variant: "A", Place: depot},
		{Version: 1, Sequence: 2, Line: 10, Variant: "A", Place: stopRef(1)},
		{Version: 1, Sequence: 3, Line: 10, Variant: "A", Place: stopRef(2)},
	}

	network := buildTestNetwork(t, records)

	// The depot point resolves to the existing Alpha station, nothing is
	// synthesized. The following stop at the same station collapses into
	// one route entry.
	assert.Len(t, network.Stations(), 2)
	route := network.Routes()[0]
	require.Len(t, route.Stations, 2)
	assert.Equal(t, "Alpha", route.Stations[0].Station.Name)
	assert.Equal(t, 1000.0, route.Stations[1].ElapsedDistance)
}

func TestBuildNetworkMergesEntryAndExitPoints(t *testing.T) {
	records := baseNetworkRecords()
	entry := PlaceRef{Kind: PlaceKindEntry, Number: 60}
	exit := PlaceRef{Kind: PlaceKindExit, Number: 61}
	records.Places = append(records.Places,
		Place{Version: 1, Kind: PlaceKindEntry, Number: 60, Name: "Gamma Einsetzen", ShortName: "GAME"},
		Place{Version: 1, Kind: PlaceKindExit, Number: 61, Name: "Gamma Aussetzen", ShortName: "GAMA"})
	records.Segments = append(records.Segments,
		SegmentRecord{Version: 1, Region: 1, From: entry, To: stopRef(1), Length: 100},
		SegmentRecord{Version: 1, Region: 1, From: stopRef(2), To: exit, Length: 100})
	records.VariantPoints = []VariantPointRecord{
		{Version: 1, Sequence: 1, Line: 10, Variant: "A", Place: entry},
		{Version: 1, Sequence: 2, Line: 10, Variant: "A", Place: stopRef(1)},
		{Version: 1, Sequence: 3, Line: 10, Variant: "A", Place: stopRef(2)},
		{Version: 1, Sequence: 4, Line: 10, Variant: "A", Place: exit},
	}

	network := buildTestNetwork(t, records)

	// Entry and exit collapse onto one synthesized station.
	require.Len(t, network.Stations(), 3)
	synthesized := network.Stations()[2]
	assert.True(t, synthesized.Synthesized)
	assert.Equal(t, "Gamma", synthesized.Name)
	assert.Equal(t, "GAM", synthesized.NameShort)

	route := network.Routes()[0]
	require.Len(t, route.Stations, 4)
	assert.Same(t, synthesized, route.Stations[0].Station)
	assert.Same(t, synthesized, route.Stations[3].Station)
}

func TestBuildNetworkRejectsNonIncreasingDistance(t *testing.T) {
	records := baseNetworkRecords()
	records.Segments[0].Length = 0

	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	_, err = BuildNetwork(resolver, DefaultDegeneratePatterns())
	var consistencyErr *ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Contains(t, consistencyErr.Error(), "does not increase")
}

func TestBuildNetworkRejectsStalledInteriorDistance(t *testing.T) {
	records := baseNetworkRecords()
	records.Places = append(records.Places,
		Place{Version: 1, Kind: PlaceKindStop, Number: 3, Name: "Gamma", ShortName: "GAM"})
	// Beta to Gamma carries a zero-length segment, so the elapsed distance
	// stalls between two distinct stations.
	records.Segments = append(records.Segments,
		SegmentRecord{Version: 1, Region: 1, From: stopRef(2), To: stopRef(3), Length: 0})
	records.VariantPoints = append(records.VariantPoints,
		VariantPointRecord{Version: 1, Sequence: 3, Line: 10, Variant: "A", Place: stopRef(3)})

	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	_, err = BuildNetwork(resolver, DefaultDegeneratePatterns())
	var consistencyErr *ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Contains(t, consistencyErr.Error(), "Gamma")
}

func TestBuildNetworkDeduplicatesIdenticalRoutes(t *testing.T) {
	records := baseNetworkRecords()
	records.VariantPoints = append(records.VariantPoints,
		VariantPointRecord{Version: 1, Sequence: 1, Line: 10, Variant: "B", Place: stopRef(1)},
		VariantPointRecord{Version: 1, Sequence: 2, Line: 10, Variant: "B", Place: stopRef(2)})
	records.LineVariants = append(records.LineVariants,
		LineVariantRecord{Version: 1, Region: 1, Line: 10, Variant: "B", ShortName: "M10", Name: "Alpha - Beta"})

	network := buildTestNetwork(t, records)

	assert.Len(t, network.Routes(), 1)

	planA, ok := network.Plan(10, "A")
	require.True(t, ok)
	planB, ok := network.Plan(10, "B")
	require.True(t, ok)
	assert.Same(t, planA.Route, planB.Route)
}

func TestBuildNetworkSkipsDegenerateVariant(t *testing.T) {
	pattern := DefaultDegeneratePatterns().Patterns[1]

	records := baseNetworkRecords()
	records.VariantPoints = nil
	for i, number := range pattern.Places {
		kind := PlaceKindEntry
		if i%2 == 1 {
			kind = PlaceKindStop
		}
		records.Places = append(records.Places,
			Place{Version: 1, Kind: kind, Number: number, Name: "P", ShortName: "P"})
		records.VariantPoints = append(records.VariantPoints, VariantPointRecord{
			Version: 1, Sequence: int64(i + 1), Line: 10, Variant: "A",
			Place: PlaceRef{Kind: kind, Number: number},
		})
	}

	network := buildTestNetwork(t, records)

	assert.Empty(t, network.Routes())
	_, ok := network.Plan(10, "A")
	assert.False(t, ok)
	reason, skipped := network.Skipped(10, "A")
	assert.True(t, skipped)
	assert.NotEmpty(t, reason)
}

func TestBuildNetworkMissingPlaceIsFatal(t *testing.T) {
	records := baseNetworkRecords()
	records.VariantPoints = append(records.VariantPoints,
		VariantPointRecord{Version: 1, Sequence: 3, Line: 10, Variant: "A", Place: stopRef(99)})
	records.Segments = append(records.Segments,
		SegmentRecord{Version: 1, Region: 1, From: stopRef(2), To: stopRef(99), Length: 100})

	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	_, err = BuildNetwork(resolver, DefaultDegeneratePatterns())
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
}

func TestVehicleTypeForPlaceholder(t *testing.T) {
	records := baseNetworkRecords()
	records.VehicleTypes = []VehicleTypeRecord{
		{Version: 1, Number: 7, Name: "Standard bus", ShortName: "SB", Length: 12},
	}

	network := buildTestNetwork(t, records)

	seven := int64(7)
	vehicleType, err := network.VehicleTypeFor(&seven)
	require.NoError(t, err)
	assert.Equal(t, "Standard bus", vehicleType.Name)
	assert.False(t, vehicleType.Placeholder)

	placeholder, err := network.VehicleTypeFor(nil)
	require.NoError(t, err)
	assert.True(t, placeholder.Placeholder)
	// Resolving twice yields the same placeholder.
	again, err := network.VehicleTypeFor(nil)
	require.NoError(t, err)
	assert.Same(t, placeholder, again)
	assert.Contains(t, network.VehicleTypes(), placeholder)

	missing := int64(99)
	_, err = network.VehicleTypeFor(&missing)
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
}
