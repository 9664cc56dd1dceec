package vdv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestActiveVersionPicksLatestValid(t *testing.T) {
	versions := []VersionValidity{
		{ValidFrom: date(2024, 1, 1), Version: 1},
		{ValidFrom: date(2025, 1, 1), Version: 2},
		{ValidFrom: date(2030, 1, 1), Version: 3},
	}

	version, err := activeVersion(versions, date(2025, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestActiveVersionRejectsFutureOnlyDataset(t *testing.T) {
	versions := []VersionValidity{
		{ValidFrom: date(2030, 1, 1), Version: 3},
	}

	_, err := activeVersion(versions, date(2025, 6, 1))
	var consistencyErr *ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
}

func TestResolverFiltersInactiveVersions(t *testing.T) {
	stop := PlaceRef{Kind: PlaceKindStop, Number: 1}
	records := &RecordSet{
		Versions: []VersionValidity{
			{ValidFrom: date(2024, 1, 1), Version: 1},
			{ValidFrom: date(2025, 1, 1), Version: 2},
		},
		Places: []Place{
			{Version: 1, Kind: PlaceKindStop, Number: 1, Name: "Old Alpha"},
			{Version: 2, Kind: PlaceKindStop, Number: 1, Name: "Alpha"},
		},
	}

	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), resolver.Version)

	place, err := resolver.Place(stop)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", place.Name)
	assert.Len(t, resolver.Places(), 1)
}

func TestSegmentLengthRelaxedRegionMatch(t *testing.T) {
	from := PlaceRef{Kind: PlaceKindStop, Number: 1}
	to := PlaceRef{Kind: PlaceKindStop, Number: 2}

	records := &RecordSet{
		Versions: []VersionValidity{{ValidFrom: date(2024, 1, 1), Version: 1}},
		Segments: []SegmentRecord{
			{Version: 1, Region: 1, From: from, To: to, Length: 800},
			{Version: 1, Region: 2, From: from, To: to, Length: 800},
		},
	}
	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	// Region 3 has no exact entry; both candidates agree, so the lookup
	// falls back to them.
	length, err := resolver.SegmentLength(3, from, to)
	require.NoError(t, err)
	assert.Equal(t, 800.0, length)
}

func TestSegmentLengthRelaxedDisagreementIsFatal(t *testing.T) {
	from := PlaceRef{Kind: PlaceKindStop, Number: 1}
	to := PlaceRef{Kind: PlaceKindStop, Number: 2}

	records := &RecordSet{
		Versions: []VersionValidity{{ValidFrom: date(2024, 1, 1), Version: 1}},
		Segments: []SegmentRecord{
			{Version: 1, Region: 1, From: from, To: to, Length: 800},
			{Version: 1, Region: 2, From: from, To: to, Length: 900},
		},
	}
	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	_, err = resolver.SegmentLength(3, from, to)
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Contains(t, refErr.Error(), "disagree")
}

func TestSegmentLengthMissingIsFatal(t *testing.T) {
	records := &RecordSet{
		Versions: []VersionValidity{{ValidFrom: date(2024, 1, 1), Version: 1}},
	}
	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	_, err = resolver.SegmentLength(1,
		PlaceRef{Kind: PlaceKindStop, Number: 1},
		PlaceRef{Kind: PlaceKindStop, Number: 2})
	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
}

func TestDwellFallback(t *testing.T) {
	stop := PlaceRef{Kind: PlaceKindStop, Number: 1}
	other := PlaceRef{Kind: PlaceKindStop, Number: 2}

	records := &RecordSet{
		Versions:    []VersionValidity{{ValidFrom: date(2024, 1, 1), Version: 1}},
		GroupDwells: []GroupDwellRecord{{Version: 1, Group: 1, Place: stop, Dwell: 30}},
		TripDwells:  []TripDwellRecord{{Version: 1, TripID: 100, Place: stop, Dwell: 45}},
	}
	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	// Trip-specific dwell wins over the timing-group dwell.
	assert.Equal(t, 45*time.Second, resolver.Dwell(100, 1, stop))
	// Without a trip-specific entry the group dwell applies.
	assert.Equal(t, 30*time.Second, resolver.Dwell(101, 1, stop))
	// Neither source: zero.
	assert.Equal(t, time.Duration(0), resolver.Dwell(100, 1, other))
}

func TestVariantPointsOrderedBySequence(t *testing.T) {
	records := &RecordSet{
		Versions: []VersionValidity{{ValidFrom: date(2024, 1, 1), Version: 1}},
		VariantPoints: []VariantPointRecord{
			{Version: 1, Sequence: 2, Line: 10, Variant: "A", Place: PlaceRef{Kind: PlaceKindStop, Number: 2}},
			{Version: 1, Sequence: 1, Line: 10, Variant: "A", Place: PlaceRef{Kind: PlaceKindStop, Number: 1}},
		},
	}
	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	points, err := resolver.VariantPoints(10, "A")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(1), points[0].Place.Number)
	assert.Equal(t, int64(2), points[1].Place.Number)
}

func TestDatesForDayTypeEmptyIsNotAnError(t *testing.T) {
	records := &RecordSet{
		Versions: []VersionValidity{{ValidFrom: date(2024, 1, 1), Version: 1}},
	}
	resolver, err := NewResolver(records, date(2025, 6, 1))
	require.NoError(t, err)

	assert.Empty(t, resolver.DatesForDayType(9))
}
